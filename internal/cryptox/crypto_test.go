package cryptox

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	h, err := HashPassword("abc123", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if h == "abc123" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !CheckPassword(h, "abc123") {
		t.Fatal("expected password to match its hash")
	}
	if CheckPassword(h, "abc124") {
		t.Fatal("wrong password must not match")
	}
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	h1, err := HashPassword("same-password1", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashPassword("same-password1", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Fatal("two hashes of the same password should differ")
	}
}

func TestHashPassword_InvalidCostFallsBack(t *testing.T) {
	h, err := HashPassword("abc123", 99)
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(h))
	if err != nil {
		t.Fatal(err)
	}
	if cost != DefaultCost {
		t.Fatalf("cost = %d, want %d", cost, DefaultCost)
	}
}

func TestHashPassword_TooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", 100), bcrypt.MinCost)
	if err == nil {
		t.Fatal("expected error for password over 72 bytes")
	}
	if !IsTooLong(err) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestCheckPassword_MalformedHash(t *testing.T) {
	if CheckPassword("not-a-bcrypt-hash", "abc123") {
		t.Fatal("malformed hash must not match")
	}
}
