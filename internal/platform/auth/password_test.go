package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("expected password to be hashed")
	}

	ok, err := CheckPassword(hash, "correct horse")
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}

	ok, err = CheckPassword(hash, "battery staple")
	if err != nil {
		t.Fatalf("unexpected error on mismatch: %v", err)
	}
	if ok {
		t.Fatal("expected mismatch")
	}
}

func TestCheckPassword_MalformedHash(t *testing.T) {
	ok, err := CheckPassword("plaintext", "plaintext")
	if ok {
		t.Fatal("expected malformed hash not to match")
	}
	if err == nil {
		t.Fatal("expected error for malformed hash")
	}
}
