// smwrap is the reference participant: a wrapper over the tjfoc/gmsm
// implementation of SM2, SM3 and SM4 speaking the harness contract. It
// prints exactly one JSON object to stdout and exits 0 only on success,
// so it can stand in the same roster as wrappers in other languages.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/tjfoc/gmsm/sm2"
	"github.com/tjfoc/gmsm/sm3"
	"github.com/tjfoc/gmsm/sm4"

	"github.com/smlab/smconform/internal/contract"
)

func main() {
	resp := run(os.Args[1:])
	if err := json.NewEncoder(os.Stdout).Encode(resp); err != nil {
		fmt.Fprintf(os.Stderr, "encode response: %v\n", err)
		os.Exit(1)
	}
	if resp.Status != contract.StatusSuccess {
		os.Exit(1)
	}
}

// run parses the command line and dispatches to the requested operation.
// Every failure becomes an error response; the caller never panics.
func run(args []string) *contract.Response {
	if len(args) < 2 {
		return errorf("usage: smwrap <algorithm> <operation> --input <json>")
	}

	alg, err := contract.ParseAlgorithm(args[0])
	if err != nil {
		return errorf("%v", err)
	}
	op, err := contract.ParseOperation(args[1])
	if err != nil {
		return errorf("%v", err)
	}
	if !contract.Supported(alg, op) {
		return errorf("unsupported operation: %s %s", alg, op)
	}

	fs := flag.NewFlagSet("smwrap", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	inputJSON := fs.String("input", "", "JSON input object")
	if err := fs.Parse(args[2:]); err != nil {
		return errorf("%v", err)
	}
	if *inputJSON == "" {
		return errorf("--input is required")
	}

	var input map[string]string
	if err := json.Unmarshal([]byte(*inputJSON), &input); err != nil {
		return errorf("invalid JSON input: %v", err)
	}

	switch {
	case alg == contract.SM3 && op == contract.OpHash:
		return hashSM3(input)
	case alg == contract.SM4 && op == contract.OpEncrypt:
		return encryptSM4(input)
	case alg == contract.SM4 && op == contract.OpDecrypt:
		return decryptSM4(input)
	case alg == contract.SM2 && op == contract.OpSign:
		return signSM2(input)
	case alg == contract.SM2 && op == contract.OpVerify:
		return verifySM2(input)
	case alg == contract.SM2 && op == contract.OpEncrypt:
		return encryptSM2(input)
	case alg == contract.SM2 && op == contract.OpDecrypt:
		return decryptSM2(input)
	}
	return errorf("unsupported operation: %s %s", alg, op)
}

func errorf(format string, args ...any) *contract.Response {
	return &contract.Response{
		Status:  contract.StatusError,
		Message: fmt.Sprintf(format, args...),
	}
}

func required(input map[string]string, field string) (string, *contract.Response) {
	v := input[field]
	if v == "" {
		return "", errorf("missing %q field", field)
	}
	return v, nil
}

func hashSM3(input map[string]string) *contract.Response {
	data, errResp := required(input, contract.FieldData)
	if errResp != nil {
		return errResp
	}
	sum := sm3.Sm3Sum([]byte(data))
	return &contract.Response{
		Status: contract.StatusSuccess,
		Output: hex.EncodeToString(sum),
	}
}

func encryptSM4(input map[string]string) *contract.Response {
	plaintext, errResp := required(input, contract.FieldPlaintext)
	if errResp != nil {
		return errResp
	}
	out, errResp := runSM4(input, []byte(plaintext), true)
	if errResp != nil {
		return errResp
	}
	return &contract.Response{
		Status: contract.StatusSuccess,
		Output: hex.EncodeToString(out),
	}
}

func decryptSM4(input map[string]string) *contract.Response {
	ciphertextHex, errResp := required(input, contract.FieldCiphertext)
	if errResp != nil {
		return errResp
	}
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return errorf("invalid ciphertext hex: %v", err)
	}
	out, errResp := runSM4(input, ciphertext, false)
	if errResp != nil {
		return errResp
	}
	return &contract.Response{
		Status: contract.StatusSuccess,
		Output: string(out),
	}
}

// runSM4 runs one SM4 direction. The gmsm block helpers pad with PKCS#7 on
// encrypt and strip the padding on decrypt.
func runSM4(input map[string]string, in []byte, encrypt bool) ([]byte, *contract.Response) {
	keyHex, errResp := required(input, contract.FieldKey)
	if errResp != nil {
		return nil, errResp
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, errorf("invalid key hex: %v", err)
	}
	if len(key) != 16 {
		return nil, errorf("key must be 16 bytes, got %d", len(key))
	}

	mode := input[contract.FieldMode]
	if mode == "" {
		mode = contract.ModeECB
	}
	switch strings.ToUpper(mode) {
	case contract.ModeECB:
		out, err := sm4.Sm4Ecb(key, in, encrypt)
		if err != nil {
			return nil, errorf("sm4 ecb: %v", err)
		}
		return out, nil
	case contract.ModeCBC:
		ivHex, errResp := required(input, contract.FieldIV)
		if errResp != nil {
			return nil, errResp
		}
		iv, err := hex.DecodeString(ivHex)
		if err != nil {
			return nil, errorf("invalid iv hex: %v", err)
		}
		if err := sm4.SetIV(iv); err != nil {
			return nil, errorf("set iv: %v", err)
		}
		out, err := sm4.Sm4Cbc(key, in, encrypt)
		if err != nil {
			return nil, errorf("sm4 cbc: %v", err)
		}
		return out, nil
	}
	return nil, errorf("unknown mode %q", mode)
}

func signSM2(input map[string]string) *contract.Response {
	message, errResp := required(input, contract.FieldMessage)
	if errResp != nil {
		return errResp
	}

	resp := &contract.Response{Status: contract.StatusSuccess}
	var priv *sm2.PrivateKey
	if hexD := input[contract.FieldPrivateKey]; hexD != "" {
		p, err := parsePrivateKey(hexD)
		if err != nil {
			return errorf("%v", err)
		}
		priv = p
	} else {
		// No key supplied: generate a fresh pair and hand it back so the
		// verifier half of the roundtrip can use it.
		p, err := sm2.GenerateKey(rand.Reader)
		if err != nil {
			return errorf("generate keypair: %v", err)
		}
		priv = p
		resp.PrivateKey = encodePrivateKey(p)
		resp.PublicKey = encodePublicKey(&p.PublicKey)
	}

	sig, err := priv.Sign(rand.Reader, []byte(message), nil)
	if err != nil {
		return errorf("sign: %v", err)
	}
	resp.Signature = hex.EncodeToString(sig)
	return resp
}

func verifySM2(input map[string]string) *contract.Response {
	message, errResp := required(input, contract.FieldMessage)
	if errResp != nil {
		return errResp
	}
	sigHex, errResp := required(input, contract.FieldSignature)
	if errResp != nil {
		return errResp
	}
	pubHex, errResp := required(input, contract.FieldPublicKey)
	if errResp != nil {
		return errResp
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return errorf("invalid signature hex: %v", err)
	}
	pub, err := parsePublicKey(pubHex)
	if err != nil {
		return errorf("%v", err)
	}

	// A signature that does not check out is a result, not a failure.
	valid := pub.Verify([]byte(message), sig)
	return &contract.Response{
		Status: contract.StatusSuccess,
		Valid:  &valid,
	}
}

func encryptSM2(input map[string]string) *contract.Response {
	plaintext, errResp := required(input, contract.FieldPlaintext)
	if errResp != nil {
		return errResp
	}
	pubHex, errResp := required(input, contract.FieldPublicKey)
	if errResp != nil {
		return errResp
	}
	pub, err := parsePublicKey(pubHex)
	if err != nil {
		return errorf("%v", err)
	}

	ciphertext, err := sm2.Encrypt(pub, []byte(plaintext), rand.Reader, sm2.C1C3C2)
	if err != nil {
		return errorf("sm2 encrypt: %v", err)
	}
	return &contract.Response{
		Status: contract.StatusSuccess,
		Output: hex.EncodeToString(ciphertext),
	}
}

func decryptSM2(input map[string]string) *contract.Response {
	ciphertextHex, errResp := required(input, contract.FieldCiphertext)
	if errResp != nil {
		return errResp
	}
	privHex, errResp := required(input, contract.FieldPrivateKey)
	if errResp != nil {
		return errResp
	}

	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return errorf("invalid ciphertext hex: %v", err)
	}
	priv, err := parsePrivateKey(privHex)
	if err != nil {
		return errorf("%v", err)
	}

	plaintext, err := sm2.Decrypt(priv, ciphertext, sm2.C1C3C2)
	if err != nil {
		return errorf("sm2 decrypt: %v", err)
	}
	return &contract.Response{
		Status: contract.StatusSuccess,
		Output: string(plaintext),
	}
}

// parsePrivateKey rebuilds a key pair from the 64-hex-digit scalar every
// wrapper exchanges.
func parsePrivateKey(hexD string) (*sm2.PrivateKey, error) {
	d, ok := new(big.Int).SetString(hexD, 16)
	if !ok {
		return nil, fmt.Errorf("invalid private key hex")
	}
	curve := sm2.P256Sm2()
	if d.Sign() <= 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, fmt.Errorf("private key out of range")
	}
	priv := new(sm2.PrivateKey)
	priv.Curve = curve
	priv.D = d
	priv.X, priv.Y = curve.ScalarBaseMult(d.Bytes())
	return priv, nil
}

// parsePublicKey accepts the uncompressed 04||X||Y form, with or without
// the leading 04 byte.
func parsePublicKey(pubHex string) (*sm2.PublicKey, error) {
	raw, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, fmt.Errorf("invalid public key hex: %v", err)
	}
	switch len(raw) {
	case 65:
		if raw[0] != 0x04 {
			return nil, fmt.Errorf("unsupported point encoding 0x%02x", raw[0])
		}
		raw = raw[1:]
	case 64:
	default:
		return nil, fmt.Errorf("public key must be 64 or 65 bytes, got %d", len(raw))
	}

	curve := sm2.P256Sm2()
	x := new(big.Int).SetBytes(raw[:32])
	y := new(big.Int).SetBytes(raw[32:])
	if !curve.IsOnCurve(x, y) {
		return nil, fmt.Errorf("point is not on the sm2 curve")
	}
	return &sm2.PublicKey{Curve: curve, X: x, Y: y}, nil
}

func encodePrivateKey(priv *sm2.PrivateKey) string {
	return fmt.Sprintf("%064x", priv.D)
}

func encodePublicKey(pub *sm2.PublicKey) string {
	return fmt.Sprintf("04%064x%064x", pub.X, pub.Y)
}
