package starcos

import (
	"fmt"

	"github.com/cardwerk/starcos/pkg/iso7816"
)

// Signing on SPK 2.3 is a two-step negotiation. MANAGE SECURITY
// ENVIRONMENT configures the operation, and the card dictates which of
// two signature commands applies: COMPUTE SIGNATURE handles the
// padding/hash combinations it knows an algorithm reference for, and
// everything else goes through INTERNAL AUTHENTICATE with a
// host-encoded DigestInfo block. Whether COMPUTE SIGNATURE works can
// only be found out by probing — the MSE for it is allowed to fail,
// in which case the negotiator re-enters with the authenticate
// template.

// AlgorithmFlags is the padding and hash selection of a security
// environment.
type AlgorithmFlags uint32

const (
	PadPKCS1 AlgorithmFlags = 1 << iota
	PadISO9796
	HashNone
	HashSHA1
	HashMD5
	HashRIPEMD160
	HashMD5SHA1
)

// hashMask covers the hash selection bits.
const hashMask = HashNone | HashSHA1 | HashMD5 | HashRIPEMD160 | HashMD5SHA1

// SecOperation is the requested cryptographic operation.
type SecOperation int

const (
	SecOpSign SecOperation = iota + 1
	SecOpAuthenticate
	SecOpDecipher
)

// Algorithm identifies the public-key algorithm of the referenced key.
type Algorithm int

const (
	AlgorithmRSA Algorithm = iota + 1
)

// SecurityEnv describes one cryptographic operation to prepare.
type SecurityEnv struct {
	Operation SecOperation

	// Algorithm and AlgorithmFlags select the cipher, padding and
	// hash; AlgorithmPresent marks the selection as meaningful.
	Algorithm        Algorithm
	AlgorithmPresent bool
	AlgorithmFlags   AlgorithmFlags

	// AlgorithmRef, when present, is sent to the card verbatim in
	// place of a derived algorithm reference.
	AlgorithmRef        byte
	AlgorithmRefPresent bool

	// KeyRef references the key in the ISF; KeyRefAsymmetric selects
	// the asymmetric reference tag.
	KeyRef           []byte
	KeyRefAsymmetric bool
}

// pendingOp is what the next ComputeSignature call has to execute.
type pendingOp int

const (
	pendingNone pendingOp = iota
	pendingSignNative
	pendingSignByAuth
)

// cryptoEnv is the transient state between a successful negotiation
// and the one signature it permits.
type cryptoEnv struct {
	pending     pendingOp
	digestFlags AlgorithmFlags
}

// MSE P2 values for the control reference templates.
const (
	mseTemplateConfidentiality = 0xB8
	mseTemplateDigitalSig      = 0xB6
	mseTemplateAuthentication  = 0xA4
)

// SetSecurityEnv negotiates the security environment for env. For
// sign requests it probes COMPUTE SIGNATURE first and falls back to
// INTERNAL AUTHENTICATE; the choice is recorded for the next
// ComputeSignature call.
func (c *Card) SetSecurityEnv(env *SecurityEnv) error {
	if env == nil {
		return fmt.Errorf("nil security environment: %w", iso7816.ErrInvalidArguments)
	}

	prefix := keyRefTemplate(env)

	switch env.Operation {
	case SecOpDecipher:
		return c.setDecipherEnv(env, prefix)

	case SecOpSign:
		done, err := c.trySignEnv(env, prefix)
		if err != nil || done {
			return err
		}
		return c.setAuthenticateEnv(env, prefix)

	case SecOpAuthenticate:
		return c.setAuthenticateEnv(env, prefix)

	default:
		return fmt.Errorf("operation %d: %w", env.Operation, iso7816.ErrInvalidArguments)
	}
}

// keyRefTemplate renders the optional key reference data object.
func keyRefTemplate(env *SecurityEnv) []byte {
	if len(env.KeyRef) == 0 {
		return nil
	}
	tag := byte(0x84)
	if env.KeyRefAsymmetric {
		tag = 0x83
	}
	out := []byte{tag, byte(len(env.KeyRef))}
	return append(out, env.KeyRef...)
}

// setDecipherEnv configures deciphering; only PKCS#1 padding exists
// on this card. The pending signature state is untouched.
func (c *Card) setDecipherEnv(env *SecurityEnv, prefix []byte) error {
	if env.AlgorithmFlags&PadPKCS1 == 0 {
		return fmt.Errorf("decipher requires PKCS#1 padding: %w", iso7816.ErrInvalidArguments)
	}

	data := append(append([]byte(nil), prefix...), 0x80, 0x01, 0x02)
	cmd := c.command(iso7816.INS_MANAGE_SECURITY_ENVIRONMENT, 0x81, mseTemplateConfidentiality, data, 0)
	trace, err := c.transmit(cmd)
	if err != nil {
		return err
	}
	return c.checkSW(trace.Status())
}

// trySignEnv probes the card for COMPUTE SIGNATURE. done reports the
// environment was set; done == false with a nil error means the
// caller should fall back to INTERNAL AUTHENTICATE.
func (c *Card) trySignEnv(env *SecurityEnv, prefix []byte) (done bool, err error) {
	if env.AlgorithmFlags&(PadPKCS1|PadISO9796) == 0 {
		return false, nil
	}

	data := append([]byte(nil), prefix...)
	switch {
	case env.AlgorithmRefPresent:
		data = append(data, 0x80, 0x01, env.AlgorithmRef)
	case env.AlgorithmPresent && env.Algorithm == AlgorithmRSA:
		ref, ok, err := signAlgorithmRef(env.AlgorithmFlags)
		if err != nil {
			return false, err
		}
		if !ok {
			// No COMPUTE SIGNATURE reference for this combination.
			return false, nil
		}
		data = append(data, 0x80, 0x01, ref)
	}

	cmd := c.command(iso7816.INS_MANAGE_SECURITY_ENVIRONMENT, 0x41, mseTemplateDigitalSig, data, 0)

	// The probe may legally fail; keep its diagnostics quiet.
	restore := c.suppressErrors()
	trace, err := c.transmit(cmd)
	restore()
	if err != nil {
		return false, err
	}
	if trace.Status() != iso7816.SW_NO_ERROR {
		return false, nil
	}

	c.env = cryptoEnv{pending: pendingSignNative}
	return true, nil
}

// signAlgorithmRef derives the card's algorithm reference for
// COMPUTE SIGNATURE. ok == false reports a combination that must go
// through INTERNAL AUTHENTICATE instead.
func signAlgorithmRef(flags AlgorithmFlags) (ref byte, ok bool, err error) {
	switch {
	case flags&PadPKCS1 != 0:
		switch {
		case flags&HashSHA1 != 0:
			return 0x12, true, nil
		case flags&HashRIPEMD160 != 0:
			return 0x22, true, nil
		case flags&HashMD5 != 0:
			return 0x32, true, nil
		default:
			return 0, false, nil
		}
	case flags&PadISO9796 != 0:
		switch {
		case flags&HashSHA1 != 0:
			return 0x11, true, nil
		case flags&HashRIPEMD160 != 0:
			return 0x21, true, nil
		default:
			return 0, false, fmt.Errorf("ISO 9796 requires SHA-1 or RIPEMD-160: %w", iso7816.ErrInvalidArguments)
		}
	default:
		return 0, false, fmt.Errorf("no padding selected: %w", iso7816.ErrInvalidArguments)
	}
}

// setAuthenticateEnv configures INTERNAL AUTHENTICATE signing. The
// hash flags are kept so the signer can encode the DigestInfo block
// the card will not add itself.
func (c *Card) setAuthenticateEnv(env *SecurityEnv, prefix []byte) error {
	if env.AlgorithmFlags&PadPKCS1 == 0 {
		return fmt.Errorf("authentication requires PKCS#1 padding: %w", iso7816.ErrInvalidArguments)
	}

	data := append(append([]byte(nil), prefix...), 0x80, 0x01, 0x01)
	cmd := c.command(iso7816.INS_MANAGE_SECURITY_ENVIRONMENT, 0x41, mseTemplateAuthentication, data, 0)
	trace, err := c.transmit(cmd)
	if err != nil {
		return err
	}
	if err := c.checkSW(trace.Status()); err != nil {
		return err
	}

	c.env = cryptoEnv{
		pending:     pendingSignByAuth,
		digestFlags: env.AlgorithmFlags,
	}
	return nil
}

// ComputeSignature executes the operation prepared by SetSecurityEnv
// and returns the signature. The pending environment is consumed on
// every exit path, successful or not; each negotiation permits
// exactly one signature.
func (c *Card) ComputeSignature(data []byte) ([]byte, error) {
	env := c.env
	defer func() { c.env = cryptoEnv{} }()

	if len(data) > c.maxSendSize {
		return nil, fmt.Errorf("input of %d bytes exceeds the transport window: %w",
			len(data), iso7816.ErrInvalidArguments)
	}

	switch env.pending {
	case pendingSignNative:
		return c.signNative(data)
	case pendingSignByAuth:
		return c.signByAuthenticate(data, env.digestFlags)
	default:
		return nil, fmt.Errorf("no security environment negotiated: %w", iso7816.ErrInvalidArguments)
	}
}

// signNative drives COMPUTE SIGNATURE: PSO SET HASH with the digest,
// then PSO COMPUTE DIGITAL SIGNATURE to read the result.
func (c *Card) signNative(data []byte) ([]byte, error) {
	setHash := c.command(iso7816.INS_PERFORM_SECURITY_OPERATION, 0x90, 0x81, data, 0)
	trace, err := c.transmit(setHash)
	if err != nil {
		return nil, err
	}
	if err := c.checkSW(trace.Status()); err != nil {
		return nil, err
	}

	sign := c.command(iso7816.INS_PERFORM_SECURITY_OPERATION, 0x9E, 0x9A, nil, 256)
	trace, err = c.transmit(sign)
	if err != nil {
		return nil, err
	}
	if err := c.checkSW(trace.Status()); err != nil {
		return nil, err
	}
	return append([]byte(nil), trace.Data()...), nil
}

// signByAuthenticate drives INTERNAL AUTHENTICATE. When the
// negotiation recorded hash flags, the input digest is wrapped in a
// DigestInfo block first; a flag set without any hash bit means the
// caller supplies the block ready-made.
func (c *Card) signByAuthenticate(data []byte, digestFlags AlgorithmFlags) ([]byte, error) {
	block := data
	if digestFlags != 0 {
		flags := digestFlags & hashMask
		if flags == 0 {
			flags = HashNone
		}
		var err error
		block, err = EncodeDigestInfo(flags, data)
		if err != nil {
			return nil, err
		}
	}

	cmd := c.command(iso7816.INS_INTERNAL_AUTHENTICATE, 0x10, 0x00, block, 256)
	trace, err := c.transmit(cmd)
	if err != nil {
		return nil, err
	}
	if err := c.checkSW(trace.Status()); err != nil {
		return nil, err
	}
	return append([]byte(nil), trace.Data()...), nil
}
