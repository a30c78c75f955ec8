package iso7816

import (
	"bytes"
	"errors"
	"testing"
)

// scriptedTransmitter replays a fixed command/response script and
// fails the test on any deviation.
type scriptedTransmitter struct {
	t      *testing.T
	script [][2][]byte // {expected command, response}
	pos    int
}

func (s *scriptedTransmitter) Transmit(cmd []byte) ([]byte, error) {
	if s.pos >= len(s.script) {
		s.t.Fatalf("unexpected APDU #%d: %X", s.pos, cmd)
	}
	step := s.script[s.pos]
	s.pos++
	if !bytes.Equal(cmd, step[0]) {
		s.t.Fatalf("APDU #%d = %X, want %X", s.pos-1, cmd, step[0])
	}
	return step[1], nil
}

func TestClient_Send_Plain(t *testing.T) {
	tr := &scriptedTransmitter{t: t, script: [][2][]byte{
		{{0x00, 0xA4, 0x00, 0x0C, 0x02, 0x3F, 0x00}, {0x90, 0x00}},
	}}
	client := NewClient(tr)

	trace, err := client.Send(SelectMF(Class{}))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(trace) != 1 {
		t.Fatalf("trace length = %d, want 1", len(trace))
	}
	if trace.Status() != SW_NO_ERROR {
		t.Errorf("Status = %04X", uint16(trace.Status()))
	}
}

func TestClient_Send_GetResponse(t *testing.T) {
	tr := &scriptedTransmitter{t: t, script: [][2][]byte{
		// SELECT answers 61 03: three bytes waiting.
		{{0x00, 0xA4, 0x00, 0x00, 0x02, 0x3F, 0x00, 0x01}, {0x61, 0x03}},
		// GET RESPONSE fetches them.
		{{0x00, 0xC0, 0x00, 0x00, 0x03}, {0xAA, 0xBB, 0xCC, 0x90, 0x00}},
	}}
	client := NewClient(tr)

	ins, _ := NewInstruction(INS_SELECT)
	cmd := NewCommandAPDU(Class{}, ins, 0x00, 0x00, []byte{0x3F, 0x00}, 1)

	trace, err := client.Send(cmd)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(trace) != 2 {
		t.Fatalf("trace length = %d, want 2", len(trace))
	}
	if !bytes.Equal(trace.Data(), []byte{0xAA, 0xBB, 0xCC}) {
		t.Errorf("final data = %X", trace.Data())
	}
	if !trace.IsSuccess() {
		t.Error("trace not successful")
	}
}

func TestClient_Send_WrongLengthRetry(t *testing.T) {
	tr := &scriptedTransmitter{t: t, script: [][2][]byte{
		// READ BINARY with Le=16, card wants Le=8.
		{{0x00, 0xB0, 0x00, 0x00, 0x10}, {0x6C, 0x08}},
		{{0x00, 0xB0, 0x00, 0x00, 0x08}, {1, 2, 3, 4, 5, 6, 7, 8, 0x90, 0x00}},
	}}
	client := NewClient(tr)

	ins, _ := NewInstruction(INS_READ_BINARY)
	cmd := NewCommandAPDU(Class{}, ins, 0x00, 0x00, nil, 16)

	trace, err := client.Send(cmd)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(trace) != 2 {
		t.Fatalf("trace length = %d, want 2", len(trace))
	}
	if len(trace.Data()) != 8 {
		t.Errorf("final data length = %d, want 8", len(trace.Data()))
	}
	// The original command must not have been mutated by the retry.
	if cmd.Ne != 16 {
		t.Errorf("original Ne changed to %d", cmd.Ne)
	}
}

type failingTransmitter struct{}

func (failingTransmitter) Transmit([]byte) ([]byte, error) {
	return nil, errors.New("reader unplugged")
}

func TestClient_Send_TransmitError(t *testing.T) {
	client := NewClient(failingTransmitter{})
	if _, err := client.Send(SelectMF(Class{})); err == nil {
		t.Fatal("expected transmission error")
	}
}
