package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/smlab/smconform/internal/contract"
	"github.com/smlab/smconform/internal/invoke"
)

// hashCase runs the single hash leg. Agreement across participants is judged
// during aggregation; here the case passes when the digest is well-formed
// and, if the fixture pins a known answer, matches it.
func (r *Runner) hashCase(ctx context.Context, res *Result) {
	c := res.Case
	resp := r.leg(ctx, res, "hash", c.Source, contract.HashRequest(c.Input))
	if resp == nil {
		return
	}
	digest := strings.ToLower(resp.Output)
	if pin := strings.ToLower(c.KnownDigest); pin != "" && digest != pin {
		res.Status = StatusFailed
		res.Detail = fmt.Sprintf("digest %s does not match the pinned answer %s", digest, pin)
		return
	}
	res.Output = digest
	res.Status = StatusPassed
}

// cipherCase encrypts at the source and hands the ciphertext to the target
// verbatim. The case passes when the target recovers the exact plaintext.
func (r *Runner) cipherCase(ctx context.Context, res *Result) {
	c := res.Case
	enc := r.leg(ctx, res, "encrypt", c.Source, contract.EncryptRequest(c.Input, c.KeyHex, c.Mode, c.IVHex))
	if enc == nil {
		return
	}
	dec := r.leg(ctx, res, "decrypt", c.Target, contract.DecryptRequest(enc.Output, c.KeyHex, c.Mode, c.IVHex))
	if dec == nil {
		return
	}
	if dec.Output != c.Input {
		res.Status = StatusFailed
		res.Detail = fmt.Sprintf("roundtrip mismatch: %s decrypted %q, want %q", c.Target, dec.Output, c.Input)
		return
	}
	res.Output = enc.Output
	res.Status = StatusPassed
}

// signatureCase signs at the source and verifies at the target. Without a
// pinned key pair the signer generates one and the verifier uses the public
// half it returned. When the negative control is on, the verifier must also
// reject a tampered copy of the signature.
func (r *Runner) signatureCase(ctx context.Context, res *Result) {
	c := res.Case
	sig := r.leg(ctx, res, "sign", c.Source, contract.SignRequest(c.Input, c.PrivateKeyHex))
	if sig == nil {
		return
	}
	pub := c.PublicKeyHex
	if pub == "" {
		pub = sig.PublicKey
	}
	ver := r.leg(ctx, res, "verify", c.Target, contract.VerifyRequest(c.Input, sig.Signature, pub))
	if ver == nil {
		return
	}
	if ver.Valid == nil || !*ver.Valid {
		res.Status = StatusFailed
		res.Detail = fmt.Sprintf("%s rejected a signature from %s", c.Target, c.Source)
		return
	}

	if c.NegativeControl {
		if !r.tamperedLeg(ctx, res, c.Target, contract.VerifyRequest(c.Input, tamperHex(sig.Signature), pub)) {
			return
		}
	}

	res.Output = sig.Signature
	res.Status = StatusPassed
}

// tamperedLeg verifies a tampered signature. Rejection is the passing
// behavior: a clean valid=false and a participant-reported error both count.
// Accepting the tampered signature fails the case.
func (r *Runner) tamperedLeg(ctx context.Context, res *Result, verifier string, req contract.Request) bool {
	p, ok := r.participants[verifier]
	if !ok {
		res.Status = StatusSkipped
		res.Detail = fmt.Sprintf("participant %q not in roster", verifier)
		return false
	}

	out := r.invoker.Invoke(ctx, p, req)
	res.Legs = append(res.Legs, Leg{
		Name:        "verify-tampered",
		Participant: verifier,
		Kind:        out.Kind,
		Detail:      out.Message,
		Duration:    out.Duration,
	})

	switch out.Kind {
	case invoke.Success:
		if out.Response.Valid != nil && *out.Response.Valid {
			res.Status = StatusFailed
			res.Detail = fmt.Sprintf("%s accepted a tampered signature", verifier)
			return false
		}
		return true
	case invoke.OperationError:
		return true
	case invoke.TimedOut:
		res.Status = StatusTimedOut
	default:
		res.Status = StatusFailed
	}
	res.Detail = fmt.Sprintf("verify-tampered@%s: %s", verifier, out.Message)
	return false
}

// encryptionCase encrypts at the source under the fixture public key and
// decrypts at the target under the private half.
func (r *Runner) encryptionCase(ctx context.Context, res *Result) {
	c := res.Case
	enc := r.leg(ctx, res, "encrypt", c.Source, contract.AsymEncryptRequest(c.Input, c.PublicKeyHex))
	if enc == nil {
		return
	}
	dec := r.leg(ctx, res, "decrypt", c.Target, contract.AsymDecryptRequest(enc.Output, c.PrivateKeyHex))
	if dec == nil {
		return
	}
	if dec.Output != c.Input {
		res.Status = StatusFailed
		res.Detail = fmt.Sprintf("roundtrip mismatch: %s decrypted %q, want %q", c.Target, dec.Output, c.Input)
		return
	}
	res.Output = enc.Output
	res.Status = StatusPassed
}

// tamperHex flips the last hex character, keeping the value well-formed hex
// of the same length while guaranteeing it decodes to different bytes.
func tamperHex(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	i := len(b) - 1
	if b[i] == '0' {
		b[i] = '1'
	} else {
		b[i] = '0'
	}
	return string(b)
}
