package starcos

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cardwerk/starcos/pkg/iso7816"
	"github.com/cardwerk/starcos/pkg/tlv"
)

func TestProcessACL_MFHeader(t *testing.T) {
	file := &File{
		ID:   MFFileID,
		Type: FileTypeDF,
		Size: 0x0800, // 2048 bytes
	}

	data, err := ProcessACL(file)
	if err != nil {
		t.Fatalf("ProcessACL: %v", err)
	}
	if data.Kind != CreateMFData {
		t.Fatalf("Kind = %d, want MF", data.Kind)
	}

	want := tlv.Hex(
		"01 02 03 04 05 06 07 08", // factory key placeholder
		"08 00",                   // MF size
		"02 00",                   // ISF size estimate (size / 4)
		"9F 9F 9F 9F",             // AC create EF/key/DF/register DF
		"00 00 00",                // SM modes
	)
	if diff := cmp.Diff(want, data.MF.Header[:]); diff != "" {
		t.Errorf("MF header mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessACL_MFWithProtectedCreate(t *testing.T) {
	file := &File{
		ID:   MFFileID,
		Type: FileTypeDF,
		Size: 0x0400,
		ACL: map[Operation]ACLEntry{
			OpCreate: {Method: ACUserPIN, PINRef: 1, SecureMessaging: true},
		},
	}

	data, err := ProcessACL(file)
	if err != nil {
		t.Fatalf("ProcessACL: %v", err)
	}

	header := data.MF.Header
	// The SOPIN entry with SM flag translates to 0x11 for all four
	// creation conditions, and combined mode for the SM bytes.
	if !bytes.Equal(header[12:16], []byte{0x11, 0x11, 0x11, 0x11}) {
		t.Errorf("AC bytes = %X", header[12:16])
	}
	if !bytes.Equal(header[16:19], []byte{0x03, 0x03, 0x03}) {
		t.Errorf("SM bytes = %X", header[16:19])
	}
}

func TestProcessACL_DFHeader(t *testing.T) {
	file := &File{
		ID:   0xDF01,
		Type: FileTypeDF,
		Name: []byte{0xD2, 0x76, 0x00, 0x00, 0x66},
		Size: 0x0400, // 1024 bytes
	}

	data, err := ProcessACL(file)
	if err != nil {
		t.Fatalf("ProcessACL: %v", err)
	}
	if data.Kind != CreateDFData {
		t.Fatalf("Kind = %d, want DF", data.Kind)
	}

	want := tlv.Hex(
		"DF 01", // file id
		"05",    // AID length
		"D2 76 00 00 66 00 00 00 00 00 00 00 00 00 00 00", // AID, zero padded
		"01 00", // ISF size estimate
		"9F 9F", // AC create EF / create key
		"00 00", // SM modes
	)
	if diff := cmp.Diff(want, data.DF.Header[:]); diff != "" {
		t.Errorf("DF header mismatch (-want +got):\n%s", diff)
	}
	if !bytes.Equal(data.DF.Size[:], []byte{0x04, 0x00}) {
		t.Errorf("DF size = %X, want 0400", data.DF.Size)
	}
}

func TestProcessACL_DFWithoutName(t *testing.T) {
	file := &File{ID: 0xDF02, Type: FileTypeDF, Size: 0x0200}

	data, err := ProcessACL(file)
	if err != nil {
		t.Fatalf("ProcessACL: %v", err)
	}

	header := data.DF.Header
	if header[2] != 2 {
		t.Errorf("AID length byte = %d, want 2", header[2])
	}
	// The file id doubles as the name.
	if !bytes.Equal(header[3:5], []byte{0xDF, 0x02}) {
		t.Errorf("AID field starts with %X, want DF02", header[3:5])
	}
	if !bytes.Equal(header[5:19], make([]byte, 14)) {
		t.Errorf("AID padding not zeroed: %X", header[5:19])
	}
}

func TestProcessACL_EFHeaders(t *testing.T) {
	tests := []struct {
		name string
		file *File
		want []byte
	}{
		{
			name: "transparent",
			file: &File{ID: 0xEF05, Type: FileTypeWorkingEF, Structure: EFTransparent, Size: 128},
			want: tlv.Hex(
				"EF 05",       // file id
				"9F 9F 9F",    // AC read/write/erase
				"9F 9F 9F 9F", // forced ALWAYS slots
				"00 00",       // rfu
				"00",          // SM mode
				"00",          // SID from FID
				"81 00 80",    // transparent, 128 bytes
			),
		},
		{
			name: "linear fixed",
			file: &File{ID: 0xEF10, Type: FileTypeWorkingEF, Structure: EFLinearFixed, RecordCount: 4, RecordLength: 32},
			want: tlv.Hex("EF 10", "9F 9F 9F", "9F 9F 9F 9F", "00 00", "00", "00", "82 04 20"),
		},
		{
			name: "cyclic",
			file: &File{ID: 0xEF11, Type: FileTypeWorkingEF, Structure: EFCyclic, RecordCount: 8, RecordLength: 16},
			want: tlv.Hex("EF 11", "9F 9F 9F", "9F 9F 9F 9F", "00 00", "00", "00", "84 08 10"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := ProcessACL(tt.file)
			if err != nil {
				t.Fatalf("ProcessACL: %v", err)
			}
			if data.Kind != CreateEFData {
				t.Fatalf("Kind = %d, want EF", data.Kind)
			}
			if diff := cmp.Diff(tt.want, data.EF.Header[:]); diff != "" {
				t.Errorf("EF header mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProcessACL_EFSecureMessagingScan(t *testing.T) {
	file := &File{
		ID:        0xEF20,
		Type:      FileTypeWorkingEF,
		Structure: EFTransparent,
		Size:      64,
		ACL: map[Operation]ACLEntry{
			OpWrite: {Method: ACProtected},
		},
	}

	data, err := ProcessACL(file)
	if err != nil {
		t.Fatalf("ProcessACL: %v", err)
	}
	if data.EF.Header[11] != 0x03 {
		t.Errorf("SM byte = %02X, want 03", data.EF.Header[11])
	}
}

func TestProcessACL_NarrowingChecks(t *testing.T) {
	tests := []struct {
		name string
		file *File
	}{
		{"MF size too large", &File{ID: MFFileID, Type: FileTypeDF, Size: 0x10000}},
		{"DF size negative", &File{ID: 0xDF01, Type: FileTypeDF, Size: -1}},
		{"DF name too long", &File{ID: 0xDF01, Type: FileTypeDF, Name: make([]byte, 17)}},
		{"EF size too large", &File{ID: 0xEF05, Type: FileTypeWorkingEF, Structure: EFTransparent, Size: 0x10000}},
		{"record count too large", &File{ID: 0xEF05, Type: FileTypeWorkingEF, Structure: EFLinearFixed, RecordCount: 256, RecordLength: 8}},
		{"record length too large", &File{ID: 0xEF05, Type: FileTypeWorkingEF, Structure: EFCyclic, RecordCount: 4, RecordLength: 300}},
		{"EF without structure", &File{ID: 0xEF05, Type: FileTypeWorkingEF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ProcessACL(tt.file); !errors.Is(err, iso7816.ErrInvalidArguments) {
				t.Errorf("ProcessACL = %v, want ErrInvalidArguments", err)
			}
		})
	}
}

// Property: the structural descriptor built for CREATE EF parses back
// through the FCI decoder into the same logical shape.
func TestCreateEF_FCIRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		file File
	}{
		{"transparent 128", File{ID: 0xEF05, Type: FileTypeWorkingEF, Structure: EFTransparent, Size: 128}},
		{"transparent 4096", File{ID: 0xEF06, Type: FileTypeWorkingEF, Structure: EFTransparent, Size: 4096}},
		{"linear fixed 4x32", File{ID: 0xEF07, Type: FileTypeWorkingEF, Structure: EFLinearFixed, RecordCount: 4, RecordLength: 32}},
		{"cyclic 8x16", File{ID: 0xEF08, Type: FileTypeWorkingEF, Structure: EFCyclic, RecordCount: 8, RecordLength: 16}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := ProcessACL(&tt.file)
			if err != nil {
				t.Fatalf("ProcessACL: %v", err)
			}

			// Rebuild the FCI the card would return for this EF from
			// the trailing structural descriptor of the header.
			desc := data.EF.Header[13:16]
			var fci []byte
			switch tt.file.Structure {
			case EFTransparent:
				fci = append(tlv.Hex("6F 07", "80 02"), desc[1], desc[2], 0x82, 0x01, 0x01)
			default:
				structural := byte(0x02)
				if tt.file.Structure == EFCyclic {
					structural = 0x07
				}
				fci = append(tlv.Hex("6F 05"), 0x82, 0x03, structural, 0x21, desc[2])
			}

			var decoded File
			if err := processFCI(&decoded, fci); err != nil {
				t.Fatalf("processFCI: %v", err)
			}

			if decoded.Structure != tt.file.Structure {
				t.Errorf("Structure = %d, want %d", decoded.Structure, tt.file.Structure)
			}
			if tt.file.Structure == EFTransparent && decoded.Size != tt.file.Size {
				t.Errorf("Size = %d, want %d", decoded.Size, tt.file.Size)
			}
			if tt.file.Structure != EFTransparent && decoded.RecordLength != tt.file.RecordLength {
				t.Errorf("RecordLength = %d, want %d", decoded.RecordLength, tt.file.RecordLength)
			}
		})
	}
}

func TestCreateMF_Sequence(t *testing.T) {
	file := &File{ID: MFFileID, Type: FileTypeDF, Size: 0x0800}
	card, transmitter := newTestCard(t, []exchange{
		{"80 E0 00 00 13 0102030405060708 0800 0200 9F9F9F9F 000000", "90 00"},
	})

	if err := card.CreateFile(file); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	transmitter.done()
}

func TestCreateDF_Sequence(t *testing.T) {
	file := &File{
		ID:   0xDF01,
		Type: FileTypeDF,
		Name: []byte{0xD2, 0x76, 0x00},
		Size: 0x0400,
	}
	card, transmitter := newTestCard(t, []exchange{
		// REGISTER DF carries the DF size in P1/P2 and the first
		// 3 + namelen header bytes.
		{"80 52 04 00 06 DF01 03 D27600", "90 00"},
		{"80 E0 01 00 19 DF01 03 D2760000000000000000000000000000 0100 9F9F 0000", "90 00"},
	})

	if err := card.CreateFile(file); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	transmitter.done()
}

func TestCreateDF_RegisterFailureStopsSequence(t *testing.T) {
	file := &File{ID: 0xDF01, Type: FileTypeDF, Size: 0x0400}
	card, transmitter := newTestCard(t, []exchange{
		{"80 52 04 00 05 DF01 02 DF01", "6A 8A"},
	})

	err := card.CreateFile(file)
	if !errors.Is(err, iso7816.ErrFileAlreadyExists) {
		t.Fatalf("CreateFile = %v, want ErrFileAlreadyExists", err)
	}
	transmitter.done()
}

func TestCreateEF_Sequence(t *testing.T) {
	file := &File{ID: 0xEF05, Type: FileTypeWorkingEF, Structure: EFTransparent, Size: 128}
	card, transmitter := newTestCard(t, []exchange{
		{"80 E0 03 00 10 EF05 9F9F9F 9F9F9F9F 0000 00 00 810080", "90 00"},
	})

	if err := card.CreateFile(file); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	transmitter.done()
}

func TestCreateEnd(t *testing.T) {
	card, transmitter := newTestCard(t, []exchange{
		{"80 E0 02 00 02 DF 01", "90 00"},
	})

	if err := card.CreateEnd(&File{ID: 0xDF01, Type: FileTypeDF}); err != nil {
		t.Fatalf("CreateEnd: %v", err)
	}
	transmitter.done()

	if err := card.CreateEnd(&File{ID: 0xEF05, Type: FileTypeWorkingEF}); !errors.Is(err, iso7816.ErrInvalidArguments) {
		t.Errorf("CreateEnd(EF) = %v, want ErrInvalidArguments", err)
	}
}
