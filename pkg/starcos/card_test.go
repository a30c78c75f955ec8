package starcos

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/cardwerk/starcos/pkg/tlv"
)

// exchange is one scripted command/response pair, both as hex strings.
type exchange struct {
	cmd  string
	resp string
}

// scriptedCard replays a fixed APDU script and fails the test on any
// deviation from it.
type scriptedCard struct {
	t      *testing.T
	script []exchange
	pos    int
}

func (s *scriptedCard) Transmit(cmd []byte) ([]byte, error) {
	s.t.Helper()
	if s.pos >= len(s.script) {
		s.t.Fatalf("unexpected APDU #%d: %X", s.pos, cmd)
	}
	step := s.script[s.pos]
	s.pos++
	if want := tlv.Hex(step.cmd); !bytes.Equal(cmd, want) {
		s.t.Fatalf("APDU #%d = %X, want %X", s.pos-1, cmd, want)
	}
	return tlv.Hex(step.resp), nil
}

// done verifies the whole script was consumed.
func (s *scriptedCard) done() {
	s.t.Helper()
	if s.pos != len(s.script) {
		s.t.Errorf("script not fully consumed: %d of %d exchanges", s.pos, len(s.script))
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newLineLogger captures text log lines for assertions.
func newLineLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// newTestCard builds a connected card over a scripted transmitter.
func newTestCard(t *testing.T, script []exchange) (*Card, *scriptedCard) {
	t.Helper()
	transmitter := &scriptedCard{t: t, script: script}
	card, err := Connect(transmitter, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return card, transmitter
}
