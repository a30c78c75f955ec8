package iso7816

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustClass(t *testing.T, cla byte) Class {
	t.Helper()
	c, err := NewClass(cla)
	if err != nil {
		t.Fatalf("NewClass(%02X): %v", cla, err)
	}
	return c
}

func mustIns(t *testing.T, ins InsCode) Instruction {
	t.Helper()
	i, err := NewInstruction(ins)
	if err != nil {
		t.Fatalf("NewInstruction(%02X): %v", ins, err)
	}
	return i
}

func TestCommandAPDU_Bytes(t *testing.T) {
	cla := Class{}
	ins, _ := NewInstruction(INS_SELECT)

	tests := []struct {
		name string
		cmd  *CommandAPDU
		want []byte
	}{
		{
			name: "case 1: header only",
			cmd:  NewCommandAPDU(cla, ins, 0x00, 0x0C, nil, 0),
			want: []byte{0x00, 0xA4, 0x00, 0x0C},
		},
		{
			name: "case 2 short: Le only",
			cmd:  NewCommandAPDU(cla, ins, 0x00, 0x00, nil, 16),
			want: []byte{0x00, 0xA4, 0x00, 0x00, 0x10},
		},
		{
			name: "case 2 short: Le 256 encodes as 00",
			cmd:  NewCommandAPDU(cla, ins, 0x00, 0x00, nil, 256),
			want: []byte{0x00, 0xA4, 0x00, 0x00, 0x00},
		},
		{
			name: "case 3 short: Lc and data",
			cmd:  NewCommandAPDU(cla, ins, 0x00, 0x0C, []byte{0x3F, 0x00}, 0),
			want: []byte{0x00, 0xA4, 0x00, 0x0C, 0x02, 0x3F, 0x00},
		},
		{
			name: "case 4 short: Lc, data and Le",
			cmd:  NewCommandAPDU(cla, ins, 0x00, 0x00, []byte{0x3F, 0x00}, 1),
			want: []byte{0x00, 0xA4, 0x00, 0x00, 0x02, 0x3F, 0x00, 0x01},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Bytes()
			if err != nil {
				t.Fatalf("Bytes() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("encoding mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCommandAPDU_Bytes_Extended(t *testing.T) {
	cla := Class{}
	ins, _ := NewInstruction(INS_UPDATE_BINARY)

	data := bytes.Repeat([]byte{0xAB}, 300)
	cmd := NewCommandAPDU(cla, ins, 0x00, 0x00, data, 0)

	got, err := cmd.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}

	// Header + extended Lc marker (00 01 2C) + data
	wantPrefix := []byte{0x00, 0xD6, 0x00, 0x00, 0x00, 0x01, 0x2C}
	if !bytes.HasPrefix(got, wantPrefix) {
		t.Errorf("extended prefix = %X, want %X", got[:7], wantPrefix)
	}
	if len(got) != 7+300 {
		t.Errorf("total length = %d, want %d", len(got), 7+300)
	}
}

func TestCommandAPDU_Bytes_ProprietaryClass(t *testing.T) {
	cla := mustClass(t, 0x00).WithProprietary()
	ins := mustIns(t, INS_CREATE_FILE)

	got, err := NewCommandAPDU(cla, ins, 0x02, 0x00, []byte{0x50, 0x15}, 0).Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	want := []byte{0x80, 0xE0, 0x02, 0x00, 0x02, 0x50, 0x15}
	if !bytes.Equal(got, want) {
		t.Errorf("encoding = %X, want %X", got, want)
	}
}

func TestParseResponseAPDU(t *testing.T) {
	tests := []struct {
		name     string
		raw      []byte
		wantData []byte
		wantSW   StatusWord
		wantErr  bool
	}{
		{
			name:   "status only",
			raw:    []byte{0x90, 0x00},
			wantSW: SW_NO_ERROR,
		},
		{
			name:     "data and status",
			raw:      []byte{0x6F, 0x01, 0xAA, 0x90, 0x00},
			wantData: []byte{0x6F, 0x01, 0xAA},
			wantSW:   SW_NO_ERROR,
		},
		{
			name:    "too short",
			raw:     []byte{0x90},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponseAPDU(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Status != tt.wantSW {
				t.Errorf("Status = %04X, want %04X", uint16(got.Status), uint16(tt.wantSW))
			}
			if !bytes.Equal(got.Data, tt.wantData) {
				t.Errorf("Data = %X, want %X", got.Data, tt.wantData)
			}
		})
	}
}
