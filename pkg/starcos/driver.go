/*
Package starcos implements a driver for smart cards running the
STARCOS SPK 2.3 operating system on top of the generic iso7816 layer.

The card family deviates from plain ISO 7816-4 in four areas this
package covers: a vendor file-creation protocol (CREATE MF, REGISTER
DF + CREATE DF, CREATE EF, CREATE END), a SELECT convention where DFs
may answer 6284 instead of returning an FCI, a signature model that
switches between COMPUTE SIGNATURE and INTERNAL AUTHENTICATE depending
on padding and hash, and a proprietary key-installation protocol that
streams key material into the Internal Secret File.
*/
package starcos

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cardwerk/starcos/pkg/iso7816"
)

// DriverName is the card name assigned on a successful ATR match.
const DriverName = "STARCOS SPK 2.3"

// maxTransfer is the transport window after init; the card handles at
// most 128 bytes per READ BINARY / UPDATE BINARY round-trip.
const maxTransfer = 128

// Answer-To-Reset values of known SPK 2.3 cards.
var knownATRs = []string{
	"3BB79400C02431FE6553504B32339000B4",
	"3BB794008131FE6553504B32339000D1",
}

// MatchATR reports whether atr identifies a STARCOS SPK 2.3 card. A
// mismatch is not an error: it means another driver should be tried.
func MatchATR(atr []byte) bool {
	h := hex.EncodeToString(atr)
	for _, known := range knownATRs {
		if strings.EqualFold(h, known) {
			return true
		}
	}
	return false
}

// AlgorithmFlags the card advertises for every RSA key size.
const rsaCapabilityFlags = PadPKCS1 | PadISO9796 |
	HashNone | HashSHA1 | HashMD5 | HashRIPEMD160 | HashMD5SHA1

// RSACapability describes one advertised RSA algorithm entry.
type RSACapability struct {
	ModulusBits int
	Exponent    int
	Flags       AlgorithmFlags
	OnboardGen  bool
}

// CardCapabilities describes what the card family can do.
type CardCapabilities struct {
	RSA []RSACapability
	RNG bool
}

// Capabilities returns the advertised capability set of SPK 2.3 cards.
func Capabilities() CardCapabilities {
	sizes := []int{512, 768, 1024}
	caps := CardCapabilities{RNG: true}
	for _, bits := range sizes {
		caps.RSA = append(caps.RSA, RSACapability{
			ModulusBits: bits,
			Exponent:    0x10001,
			Flags:       rsaCapabilityFlags,
			OnboardGen:  true,
		})
	}
	return caps
}

// Card is a handle to one STARCOS card. All driver-owned state (the
// one-entry location cache, the pending crypto environment, the
// cached serial number) lives here and dies with the handle. A Card
// must be confined to one goroutine at a time.
type Card struct {
	client *iso7816.Client
	cla    iso7816.Class
	log    *slog.Logger

	maxSendSize int
	maxRecvSize int

	// suppressed counts active suppress-errors scopes; while positive,
	// status-word diagnostics are not logged.
	suppressed int

	cache  locationCache
	env    cryptoEnv
	serial []byte
}

// Option configures a Card during Connect.
type Option func(*Card)

// WithLogger routes the driver's APDU and diagnostic logging to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *Card) { c.log = l }
}

// Connect attaches the driver to a card whose ATR already matched.
// The transport window is clamped to what the card can handle.
func Connect(t iso7816.Transmitter, opts ...Option) (*Card, error) {
	if t == nil {
		return nil, fmt.Errorf("nil transmitter: %w", iso7816.ErrInvalidArguments)
	}

	cla, err := iso7816.NewClass(0x00)
	if err != nil {
		return nil, err
	}

	c := &Card{
		client:      iso7816.NewClient(t),
		cla:         cla,
		log:         slog.Default(),
		maxSendSize: maxTransfer,
		maxRecvSize: maxTransfer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the assigned card name.
func (c *Card) Name() string { return DriverName }

// MaxSendSize returns the clamped outbound transport window.
func (c *Card) MaxSendSize() int { return c.maxSendSize }

// MaxRecvSize returns the clamped inbound transport window.
func (c *Card) MaxRecvSize() int { return c.maxRecvSize }

// Close releases the driver state bound to the handle. The underlying
// transport stays open; it belongs to the caller.
func (c *Card) Close() error {
	c.invalidateCache()
	c.env = cryptoEnv{}
	c.serial = nil
	return nil
}

// Logout deselects any application by returning to the MF. The card
// answers 6985 when no MF exists, in which case there is nothing to
// log out from.
func (c *Card) Logout() error {
	restore := c.suppressErrors()
	defer restore()

	trace, err := c.transmit(iso7816.SelectMF(c.cla))
	if err != nil {
		return err
	}
	if trace.Status() == iso7816.SW_ERR_COND_OF_USE_NOT_SAT {
		return nil
	}
	return c.checkSW(trace.Status())
}

// suppressErrors silences status-word diagnostics until the returned
// function runs. Scopes nest.
func (c *Card) suppressErrors() (restore func()) {
	c.suppressed++
	return func() { c.suppressed-- }
}

// transmit dispatches one command through the client.
func (c *Card) transmit(cmd *iso7816.CommandAPDU) (iso7816.Trace, error) {
	c.log.Debug("apdu", "cmd", cmd.String())
	trace, err := c.client.Send(cmd)
	if err != nil {
		return nil, fmt.Errorf("APDU transmit failed: %w", err)
	}
	c.log.Debug("apdu done", "sw", trace.Status().Verbose(), "resp_len", len(trace.Data()))
	return trace, nil
}

// command builds a plain-class command.
func (c *Card) command(ins iso7816.InsCode, p1, p2 byte, data []byte, ne int) *iso7816.CommandAPDU {
	instruction, _ := iso7816.NewInstruction(ins)
	return iso7816.NewCommandAPDU(c.cla, instruction, p1, p2, data, ne)
}

// vendorCommand builds a command in the proprietary class (CLA | 0x80)
// the STARCOS administrative instructions require.
func (c *Card) vendorCommand(ins iso7816.InsCode, p1, p2 byte, data []byte, ne int) *iso7816.CommandAPDU {
	instruction, _ := iso7816.NewInstruction(ins)
	return iso7816.NewCommandAPDU(c.cla.WithProprietary(), instruction, p1, p2, data, ne)
}
