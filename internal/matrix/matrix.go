// Package matrix expands a participant set into the deterministic case list
// one conformance run executes. Generation is pure: no processes are
// launched, and two calls with the same inputs yield identical matrices.
package matrix

import (
	"fmt"
	"sort"

	"github.com/smlab/smconform/internal/contract"
	"github.com/smlab/smconform/internal/fixtures"
)

// Family groups cases that share a shape and a verdict rule.
type Family string

const (
	// HashConsistency hashes the fixture with one participant. Digests are
	// cross-compared against the other participants during aggregation.
	HashConsistency Family = "hash-consistency"
	// CipherRoundtrip encrypts at the source and decrypts at the target;
	// the decrypted text must match the fixture plaintext.
	CipherRoundtrip Family = "cipher-roundtrip"
	// SignatureRoundtrip signs at the source and verifies at the target.
	SignatureRoundtrip Family = "signature-roundtrip"
	// EncryptionRoundtrip encrypts at the source and decrypts at the target
	// under sm2. Generated only when fixtures supply a key pair: the
	// harness performs no cryptography and cannot mint one.
	EncryptionRoundtrip Family = "sm2-roundtrip"
)

// Families lists the family blocks in generation order.
var Families = []Family{HashConsistency, CipherRoundtrip, SignatureRoundtrip, EncryptionRoundtrip}

// Case is one executable unit of the matrix. Participants are referenced by
// name; pair families carry an ordered source/target pair, hash-consistency
// a source only. Every input is embedded at generation time, so a case can
// be replayed as-is.
type Case struct {
	ID        string             `json:"id"`
	Index     int                `json:"index"`
	Family    Family             `json:"family"`
	Algorithm contract.Algorithm `json:"algorithm"`
	Source    string             `json:"source"`
	Target    string             `json:"target,omitempty"`

	Input       string `json:"input,omitempty"`
	KeyHex      string `json:"key,omitempty"`
	Mode        string `json:"mode,omitempty"`
	IVHex       string `json:"iv,omitempty"`
	KnownDigest string `json:"known_digest,omitempty"`

	PrivateKeyHex string `json:"private_key,omitempty"`
	PublicKeyHex  string `json:"public_key,omitempty"`

	// NegativeControl re-checks the verifier with a tampered signature.
	NegativeControl bool `json:"negative_control,omitempty"`
}

// Pair reports whether the case involves an ordered source/target pair.
func (c Case) Pair() bool {
	return c.Target != ""
}

// Generate expands participants into the full case list: one hash case per
// participant, then every ordered pair (self-pairs included, row-major) for
// each roundtrip family. Participants are ordered by name regardless of
// input order.
func Generate(participants []contract.Participant, fx *fixtures.Set) []Case {
	names := make([]string, len(participants))
	for i, p := range participants {
		names[i] = p.Name
	}
	sort.Strings(names)

	var cases []Case
	add := func(c Case) {
		c.Index = len(cases)
		cases = append(cases, c)
	}

	for _, n := range names {
		add(Case{
			ID:          fmt.Sprintf("%s/%s", HashConsistency, n),
			Family:      HashConsistency,
			Algorithm:   contract.SM3,
			Source:      n,
			Input:       fx.Hash.Data,
			KnownDigest: fx.Hash.KnownDigest,
		})
	}

	for _, src := range names {
		for _, dst := range names {
			add(Case{
				ID:        fmt.Sprintf("%s/%s->%s", CipherRoundtrip, src, dst),
				Family:    CipherRoundtrip,
				Algorithm: contract.SM4,
				Source:    src,
				Target:    dst,
				Input:     fx.Cipher.Plaintext,
				KeyHex:    fx.Cipher.KeyHex,
				Mode:      fx.Cipher.Mode,
				IVHex:     fx.Cipher.IVHex,
			})
		}
	}

	for _, src := range names {
		for _, dst := range names {
			add(Case{
				ID:              fmt.Sprintf("%s/%s->%s", SignatureRoundtrip, src, dst),
				Family:          SignatureRoundtrip,
				Algorithm:       contract.SM2,
				Source:          src,
				Target:          dst,
				Input:           fx.Signature.Message,
				PrivateKeyHex:   fx.Signature.PrivateKeyHex,
				PublicKeyHex:    fx.Signature.PublicKeyHex,
				NegativeControl: fx.NegativeControl,
			})
		}
	}

	if fx.Encryption.Enabled() {
		for _, src := range names {
			for _, dst := range names {
				add(Case{
					ID:            fmt.Sprintf("%s/%s->%s", EncryptionRoundtrip, src, dst),
					Family:        EncryptionRoundtrip,
					Algorithm:     contract.SM2,
					Source:        src,
					Target:        dst,
					Input:         fx.Encryption.Plaintext,
					PrivateKeyHex: fx.Encryption.PrivateKeyHex,
					PublicKeyHex:  fx.Encryption.PublicKeyHex,
				})
			}
		}
	}

	return cases
}
