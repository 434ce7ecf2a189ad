package contract

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{in: "sm2", want: SM2},
		{in: "sm3", want: SM3},
		{in: "sm4", want: SM4},
		{in: "SM3", want: SM3},
		{in: "Sm4", want: SM4},
		{in: "sm9", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAlgorithm(%q): expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAlgorithm(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAlgorithm(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseOperation(t *testing.T) {
	tests := []struct {
		in      string
		want    Operation
		wantErr bool
	}{
		{in: "hash", want: OpHash},
		{in: "ENCRYPT", want: OpEncrypt},
		{in: "decrypt", want: OpDecrypt},
		{in: "sign", want: OpSign},
		{in: "Verify", want: OpVerify},
		{in: "digest", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseOperation(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseOperation(%q): expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseOperation(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOperation(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSupportedTable(t *testing.T) {
	tests := []struct {
		alg  Algorithm
		op   Operation
		want bool
	}{
		{SM3, OpHash, true},
		{SM3, OpEncrypt, false},
		{SM4, OpEncrypt, true},
		{SM4, OpDecrypt, true},
		{SM4, OpSign, false},
		{SM2, OpSign, true},
		{SM2, OpVerify, true},
		{SM2, OpEncrypt, true},
		{SM2, OpDecrypt, true},
		{SM2, OpHash, false},
	}
	for _, tt := range tests {
		if got := Supported(tt.alg, tt.op); got != tt.want {
			t.Errorf("Supported(%s, %s) = %v, want %v", tt.alg, tt.op, got, tt.want)
		}
	}
}

func TestNewRequestRejectsUnsupported(t *testing.T) {
	if _, err := NewRequest(SM3, OpSign, nil); err == nil {
		t.Fatal("expected error for sm3 sign")
	}
	req, err := NewRequest(SM3, OpHash, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if req.Input == nil {
		t.Error("nil input should be normalized to an empty map")
	}
}

func TestArgsShape(t *testing.T) {
	req := HashRequest("Hello World")
	args, err := req.Args()
	if err != nil {
		t.Fatalf("Args: %v", err)
	}
	want := []string{"sm3", "hash", "--input", `{"data":"Hello World"}`}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("Args = %q, want %q", args, want)
	}
}

func TestArgsPayloadDeterministic(t *testing.T) {
	req := EncryptRequest("Test message for SM4", "0123456789abcdef0123456789abcdef", ModeECB, "")
	first, err := req.Args()
	if err != nil {
		t.Fatalf("Args: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := req.Args()
		if err != nil {
			t.Fatalf("Args: %v", err)
		}
		if !reflect.DeepEqual(again, first) {
			t.Fatalf("Args not reproducible: %q vs %q", again, first)
		}
	}
	payload := first[3]
	if strings.Index(payload, `"key"`) > strings.Index(payload, `"mode"`) {
		t.Errorf("payload keys not sorted: %s", payload)
	}
}

func TestArgsRejectsUnsupported(t *testing.T) {
	req := Request{Algorithm: SM3, Operation: OpDecrypt, Input: map[string]string{}}
	if _, err := req.Args(); err == nil {
		t.Fatal("expected error for sm3 decrypt")
	}
}

func TestRequestConstructors(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		alg  Algorithm
		op   Operation
		keys []string
	}{
		{
			name: "hash",
			req:  HashRequest("abc"),
			alg:  SM3, op: OpHash,
			keys: []string{FieldData},
		},
		{
			name: "encrypt ecb",
			req:  EncryptRequest("pt", "00112233445566778899aabbccddeeff", ModeECB, ""),
			alg:  SM4, op: OpEncrypt,
			keys: []string{FieldPlaintext, FieldKey, FieldMode},
		},
		{
			name: "encrypt cbc carries iv",
			req:  EncryptRequest("pt", "00112233445566778899aabbccddeeff", ModeCBC, "ffeeddccbbaa99887766554433221100"),
			alg:  SM4, op: OpEncrypt,
			keys: []string{FieldPlaintext, FieldKey, FieldMode, FieldIV},
		},
		{
			name: "decrypt",
			req:  DecryptRequest("aabb", "00112233445566778899aabbccddeeff", ModeECB, ""),
			alg:  SM4, op: OpDecrypt,
			keys: []string{FieldCiphertext, FieldKey, FieldMode},
		},
		{
			name: "sign without key omits private_key",
			req:  SignRequest("msg", ""),
			alg:  SM2, op: OpSign,
			keys: []string{FieldMessage},
		},
		{
			name: "sign with key",
			req:  SignRequest("msg", "ab"),
			alg:  SM2, op: OpSign,
			keys: []string{FieldMessage, FieldPrivateKey},
		},
		{
			name: "verify",
			req:  VerifyRequest("msg", "sig", "pub"),
			alg:  SM2, op: OpVerify,
			keys: []string{FieldMessage, FieldSignature, FieldPublicKey},
		},
		{
			name: "asym encrypt",
			req:  AsymEncryptRequest("pt", "pub"),
			alg:  SM2, op: OpEncrypt,
			keys: []string{FieldPlaintext, FieldPublicKey},
		},
		{
			name: "asym decrypt",
			req:  AsymDecryptRequest("ct", "priv"),
			alg:  SM2, op: OpDecrypt,
			keys: []string{FieldCiphertext, FieldPrivateKey},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.req.Algorithm != tt.alg || tt.req.Operation != tt.op {
				t.Fatalf("got %s, want %s %s", tt.req, tt.alg, tt.op)
			}
			if len(tt.req.Input) != len(tt.keys) {
				t.Fatalf("input has %d fields, want %d: %v", len(tt.req.Input), len(tt.keys), tt.req.Input)
			}
			for _, k := range tt.keys {
				if _, ok := tt.req.Input[k]; !ok {
					t.Errorf("input missing field %q", k)
				}
			}
		})
	}
}
