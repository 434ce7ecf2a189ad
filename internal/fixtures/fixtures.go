// Package fixtures pins the deterministic inputs every generated case is
// built from. The defaults reproduce the payloads the wrapper tree has been
// exercised with historically; a YAML file can override any subset.
package fixtures

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/smlab/smconform/internal/contract"
)

// Hash drives the hash-consistency family. KnownDigest, when set, pins the
// expected sm3 digest of Data; participants disagreeing with it fail even
// when they agree with each other.
type Hash struct {
	Data        string `yaml:"data"`
	KnownDigest string `yaml:"known_digest"`
}

// Cipher drives the cipher-roundtrip family.
type Cipher struct {
	Plaintext string `yaml:"plaintext"`
	KeyHex    string `yaml:"key"`
	Mode      string `yaml:"mode"`
	IVHex     string `yaml:"iv"`
}

// Signature drives the signature-roundtrip family. The key pair is optional;
// without one, each signer generates a fresh pair and returns it.
type Signature struct {
	Message       string `yaml:"message"`
	PrivateKeyHex string `yaml:"private_key"`
	PublicKeyHex  string `yaml:"public_key"`
}

// Encryption drives the sm2-roundtrip family. The family only runs when a
// key pair is supplied: the harness performs no cryptography itself and
// cannot mint one.
type Encryption struct {
	Plaintext     string `yaml:"plaintext"`
	PublicKeyHex  string `yaml:"public_key"`
	PrivateKeyHex string `yaml:"private_key"`
}

// Enabled reports whether the fixture carries the key pair the family needs.
func (e Encryption) Enabled() bool {
	return e.PublicKeyHex != "" && e.PrivateKeyHex != ""
}

// Set holds every fixture the generator consumes.
type Set struct {
	Hash       Hash       `yaml:"hash"`
	Cipher     Cipher     `yaml:"cipher"`
	Signature  Signature  `yaml:"signature"`
	Encryption Encryption `yaml:"encryption"`

	// NegativeControl re-checks each verifier with a tampered signature.
	// On by default; a sloppy verifier that accepts anything would
	// otherwise pass every roundtrip.
	NegativeControl bool `yaml:"negative_control"`
}

// DefaultSet returns the built-in fixtures matching the values the wrapper
// tree has always been tested with.
func DefaultSet() *Set {
	return &Set{
		Hash: Hash{Data: "Hello, SM3!"},
		Cipher: Cipher{
			Plaintext: "Test message for SM4",
			KeyHex:    "0123456789abcdef0123456789abcdef",
			Mode:      contract.ModeECB,
		},
		Signature:       Signature{Message: "Test message for SM2 signing"},
		NegativeControl: true,
	}
}

// Load reads fixtures from a YAML file. Empty path or missing file returns
// defaults. Invalid YAML or values that cannot drive a case return an error.
func Load(path string) (*Set, error) {
	if path == "" {
		return DefaultSet(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSet(), nil
		}
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields
	set := DefaultSet()
	if err := yaml.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures %s: %w", path, err)
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fixtures %s: %w", path, err)
	}
	return set, nil
}

// Validate rejects fixture values no participant could act on.
func (s *Set) Validate() error {
	if s.Hash.Data == "" {
		return fmt.Errorf("hash: data is empty")
	}
	if err := hexField("hash: known_digest", s.Hash.KnownDigest, 32, true); err != nil {
		return err
	}

	if s.Cipher.Plaintext == "" {
		return fmt.Errorf("cipher: plaintext is empty")
	}
	if err := hexField("cipher: key", s.Cipher.KeyHex, 16, false); err != nil {
		return err
	}
	switch s.Cipher.Mode {
	case contract.ModeECB:
		if s.Cipher.IVHex != "" {
			return fmt.Errorf("cipher: iv is meaningless in %s mode", contract.ModeECB)
		}
	case contract.ModeCBC:
		if err := hexField("cipher: iv", s.Cipher.IVHex, 16, false); err != nil {
			return err
		}
	default:
		return fmt.Errorf("cipher: unknown mode %q", s.Cipher.Mode)
	}

	if s.Signature.Message == "" {
		return fmt.Errorf("signature: message is empty")
	}
	if (s.Signature.PrivateKeyHex == "") != (s.Signature.PublicKeyHex == "") {
		return fmt.Errorf("signature: private_key and public_key must be supplied together")
	}
	if err := hexField("signature: private_key", s.Signature.PrivateKeyHex, 32, true); err != nil {
		return err
	}
	if err := publicKeyField("signature: public_key", s.Signature.PublicKeyHex); err != nil {
		return err
	}

	if (s.Encryption.PrivateKeyHex == "") != (s.Encryption.PublicKeyHex == "") {
		return fmt.Errorf("encryption: private_key and public_key must be supplied together")
	}
	if s.Encryption.Enabled() {
		if s.Encryption.Plaintext == "" {
			return fmt.Errorf("encryption: plaintext is empty")
		}
		if err := hexField("encryption: private_key", s.Encryption.PrivateKeyHex, 32, false); err != nil {
			return err
		}
		if err := publicKeyField("encryption: public_key", s.Encryption.PublicKeyHex); err != nil {
			return err
		}
	}
	return nil
}

// hexField checks that value decodes to exactly n bytes. Optional fields
// accept the empty string.
func hexField(name, value string, n int, optional bool) error {
	if value == "" {
		if optional {
			return nil
		}
		return fmt.Errorf("%s is empty", name)
	}
	raw, err := hex.DecodeString(value)
	if err != nil {
		return fmt.Errorf("%s is not hex: %w", name, err)
	}
	if len(raw) != n {
		return fmt.Errorf("%s is %d bytes, want %d", name, len(raw), n)
	}
	return nil
}

// publicKeyField checks the uncompressed-point encoding: 65 bytes starting
// with 0x04. Empty is accepted; presence pairing is checked by the caller.
func publicKeyField(name, value string) error {
	if value == "" {
		return nil
	}
	if err := hexField(name, value, 65, false); err != nil {
		return err
	}
	if !strings.HasPrefix(strings.ToLower(value), "04") {
		return fmt.Errorf("%s is not an uncompressed point", name)
	}
	return nil
}

// DefaultYAML returns a commented fixtures file for init-fixtures.
func DefaultYAML() string {
	return `# smconform fixtures
# Generated by: smconform init-fixtures
#
# Every generated case draws its inputs from this file. Values omitted here
# keep their built-in defaults, so a fixtures file can override exactly one
# knob. All binary values are lowercase hex.

# hash-consistency family (sm3).
# known_digest optionally pins the expected digest; participants that
# disagree with it fail even when they agree with each other.
hash:
  data: "Hello, SM3!"
  # known_digest: ""

# cipher-roundtrip family (sm4). key is 16 bytes of hex.
# mode is ECB or CBC; CBC requires a 16-byte iv.
cipher:
  plaintext: "Test message for SM4"
  key: "0123456789abcdef0123456789abcdef"
  mode: ECB
  # iv: ""

# signature-roundtrip family (sm2).
# Without a key pair each signer generates a fresh one per case and the
# verifier uses the returned public key. Supply both halves to pin the pair.
signature:
  message: "Test message for SM2 signing"
  # private_key: ""
  # public_key: ""

# sm2-roundtrip family (public-key encryption). Disabled unless a key pair
# is supplied: the harness performs no cryptography itself.
# encryption:
#   plaintext: "Test message for SM2 encryption"
#   public_key: ""
#   private_key: ""

# Re-check each verifier with a tampered signature. A verifier that accepts
# the tampered signature fails the case.
negative_control: true
`
}
