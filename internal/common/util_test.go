package common

import (
	"encoding/base64"
	"encoding/hex"
	"testing"
)

// ---------- MakeRandHexString ----------

func TestMakeRandHexString_LengthAndHex(t *testing.T) {
	const n = 16
	s, err := MakeRandHexString(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != n*2 {
		t.Fatalf("expected hex length %d, got %d", n*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("string is not valid hex: %v", err)
	}
}

func TestMakeRandHexString_ZeroSize(t *testing.T) {
	s, err := MakeRandHexString(0)
	if err != nil {
		t.Fatalf("unexpected error for size=0: %v", err)
	}
	if s != "" {
		t.Fatalf("expected empty string for size=0, got %q", s)
	}
}

// ---------- MakeRandURLSafeString ----------

func TestMakeRandURLSafeString_DecodesToSize(t *testing.T) {
	const n = 32
	s, err := MakeRandURLSafeString(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		t.Fatalf("not raw url base64: %v", err)
	}
	if len(raw) != n {
		t.Fatalf("expected %d decoded bytes, got %d", n, len(raw))
	}
	for _, c := range s {
		if c == '+' || c == '/' || c == '=' {
			t.Fatalf("unexpected non url-safe char %q in %q", c, s)
		}
	}
}

func TestMakeRandURLSafeString_EntropyHint(t *testing.T) {
	a, err := MakeRandURLSafeString(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := MakeRandURLSafeString(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Fatalf("two 256-bit tokens are identical: %q", a)
	}
}
