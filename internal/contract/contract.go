// Package contract defines the process-boundary protocol every participant
// implementation must honor: the argument layout, the JSON input/output
// schema, and the exit-code semantics. The harness and the reference wrapper
// share this one definition; neither re-derives field names or status
// strings anywhere else.
package contract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Algorithm identifies one algorithm of the SM suite.
type Algorithm string

const (
	SM2 Algorithm = "sm2"
	SM3 Algorithm = "sm3"
	SM4 Algorithm = "sm4"
)

// Operation names one action a participant can perform.
type Operation string

const (
	OpHash    Operation = "hash"
	OpEncrypt Operation = "encrypt"
	OpDecrypt Operation = "decrypt"
	OpSign    Operation = "sign"
	OpVerify  Operation = "verify"
)

// operations is the closed algorithm × operation table. Combinations outside
// it are rejected when a Request is built, not at dispatch time.
var operations = map[Algorithm][]Operation{
	SM3: {OpHash},
	SM4: {OpEncrypt, OpDecrypt},
	SM2: {OpSign, OpVerify, OpEncrypt, OpDecrypt},
}

// ParseAlgorithm maps a case-insensitive name to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(s)) {
	case SM2:
		return SM2, nil
	case SM3:
		return SM3, nil
	case SM4:
		return SM4, nil
	default:
		return "", fmt.Errorf("unknown algorithm %q", s)
	}
}

// ParseOperation maps a case-insensitive name to an Operation.
func ParseOperation(s string) (Operation, error) {
	switch Operation(strings.ToLower(s)) {
	case OpHash:
		return OpHash, nil
	case OpEncrypt:
		return OpEncrypt, nil
	case OpDecrypt:
		return OpDecrypt, nil
	case OpSign:
		return OpSign, nil
	case OpVerify:
		return OpVerify, nil
	default:
		return "", fmt.Errorf("unknown operation %q", s)
	}
}

// Supported reports whether the algorithm implements the operation.
func Supported(alg Algorithm, op Operation) bool {
	for _, o := range operations[alg] {
		if o == op {
			return true
		}
	}
	return false
}

// Operations returns the operations defined for an algorithm.
func Operations(alg Algorithm) []Operation {
	ops := operations[alg]
	out := make([]Operation, len(ops))
	copy(out, ops)
	return out
}

// Input payload field names. Binary values are hex-encoded; data, plaintext
// and message are raw text the participant encodes as UTF-8.
const (
	FieldData       = "data"
	FieldPlaintext  = "plaintext"
	FieldCiphertext = "ciphertext"
	FieldKey        = "key"
	FieldMode       = "mode"
	FieldIV         = "iv"
	FieldMessage    = "message"
	FieldSignature  = "signature"
	FieldPrivateKey = "private_key"
	FieldPublicKey  = "public_key"
)

// Block cipher modes accepted by the sm4 operations.
const (
	ModeECB = "ECB"
	ModeCBC = "CBC"
)

// Request is one concrete unit of work for a participant: the operation to
// perform and the JSON input payload. All values are strings per the
// contract; the map marshals with sorted keys, so the payload is
// byte-reproducible for a given request.
type Request struct {
	Algorithm Algorithm
	Operation Operation
	Input     map[string]string
}

// NewRequest builds a Request, rejecting unsupported combinations.
func NewRequest(alg Algorithm, op Operation, input map[string]string) (Request, error) {
	if !Supported(alg, op) {
		return Request{}, fmt.Errorf("unsupported operation: %s %s", alg, op)
	}
	if input == nil {
		input = map[string]string{}
	}
	return Request{Algorithm: alg, Operation: op, Input: input}, nil
}

// HashRequest builds an sm3 hash request over raw text data.
func HashRequest(data string) Request {
	return Request{Algorithm: SM3, Operation: OpHash, Input: map[string]string{
		FieldData: data,
	}}
}

// EncryptRequest builds an sm4 encrypt request. ivHex is required iff mode
// is CBC and is omitted from the payload when empty.
func EncryptRequest(plaintext, keyHex, mode, ivHex string) Request {
	in := map[string]string{
		FieldPlaintext: plaintext,
		FieldKey:       keyHex,
		FieldMode:      mode,
	}
	if ivHex != "" {
		in[FieldIV] = ivHex
	}
	return Request{Algorithm: SM4, Operation: OpEncrypt, Input: in}
}

// DecryptRequest builds an sm4 decrypt request mirroring EncryptRequest.
func DecryptRequest(ciphertextHex, keyHex, mode, ivHex string) Request {
	in := map[string]string{
		FieldCiphertext: ciphertextHex,
		FieldKey:        keyHex,
		FieldMode:       mode,
	}
	if ivHex != "" {
		in[FieldIV] = ivHex
	}
	return Request{Algorithm: SM4, Operation: OpDecrypt, Input: in}
}

// SignRequest builds an sm2 sign request. An empty privateKeyHex instructs
// the participant to generate a fresh key pair and return it.
func SignRequest(message, privateKeyHex string) Request {
	in := map[string]string{FieldMessage: message}
	if privateKeyHex != "" {
		in[FieldPrivateKey] = privateKeyHex
	}
	return Request{Algorithm: SM2, Operation: OpSign, Input: in}
}

// VerifyRequest builds an sm2 verify request.
func VerifyRequest(message, signatureHex, publicKeyHex string) Request {
	return Request{Algorithm: SM2, Operation: OpVerify, Input: map[string]string{
		FieldMessage:   message,
		FieldSignature: signatureHex,
		FieldPublicKey: publicKeyHex,
	}}
}

// AsymEncryptRequest builds an sm2 encrypt request against a public key.
func AsymEncryptRequest(plaintext, publicKeyHex string) Request {
	return Request{Algorithm: SM2, Operation: OpEncrypt, Input: map[string]string{
		FieldPlaintext: plaintext,
		FieldPublicKey: publicKeyHex,
	}}
}

// AsymDecryptRequest builds an sm2 decrypt request against a private key.
func AsymDecryptRequest(ciphertextHex, privateKeyHex string) Request {
	return Request{Algorithm: SM2, Operation: OpDecrypt, Input: map[string]string{
		FieldCiphertext: ciphertextHex,
		FieldPrivateKey: privateKeyHex,
	}}
}

// String renders the request for diagnostics, e.g. "sm4 encrypt".
func (r Request) String() string {
	return fmt.Sprintf("%s %s", r.Algorithm, r.Operation)
}

// Args returns the argument tail a participant is invoked with:
//
//	<algorithm> <operation> --input <json-object>
//
// The caller prepends the participant's own command template. Arguments form
// a discrete vector; nothing here ever passes through a shell.
func (r Request) Args() ([]string, error) {
	if !Supported(r.Algorithm, r.Operation) {
		return nil, fmt.Errorf("unsupported operation: %s %s", r.Algorithm, r.Operation)
	}
	payload, err := json.Marshal(r.Input)
	if err != nil {
		return nil, fmt.Errorf("marshal input payload: %w", err)
	}
	return []string{string(r.Algorithm), string(r.Operation), "--input", string(payload)}, nil
}
