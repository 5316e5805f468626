package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashAndCompare(t *testing.T) {
	h := testHasher()

	hash, err := h.Hash("s3cret")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash must not equal the plain password")
	}

	if err := h.Compare(hash, "s3cret"); err != nil {
		t.Errorf("Compare with correct password returned error: %v", err)
	}
	if err := h.Compare(hash, "wrong"); err == nil {
		t.Error("Compare with wrong password should fail")
	}
}

func TestNewBcryptHasher_FallsBackToDefaultCost(t *testing.T) {
	if got := NewBcryptHasher(0).Cost; got != bcrypt.DefaultCost {
		t.Errorf("Cost = %d, want %d", got, bcrypt.DefaultCost)
	}
	if got := NewBcryptHasher(10).Cost; got != 10 {
		t.Errorf("Cost = %d, want 10", got)
	}
}

func TestPasswordTooLong(t *testing.T) {
	if passwordTooLong(strings.Repeat("a", 72)) {
		t.Error("72 bytes should be accepted")
	}
	if !passwordTooLong(strings.Repeat("a", 73)) {
		t.Error("73 bytes should be rejected")
	}
}
