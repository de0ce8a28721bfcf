package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestPasswordService() *PasswordService {
	return NewPasswordServiceForTest(bcrypt.MinCost)
}

// =========================================================================
// HASH TESTS
// =========================================================================

func TestHash_OutputLooksBcrypt(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$04$") {
		t.Errorf("Hash() = %q, want a $2a$04$ bcrypt hash", hash)
	}
}

func TestHash_SamePasswordProducesDifferentHashes(t *testing.T) {
	ps := newTestPasswordService()

	h1, _ := ps.Hash("secret123")
	h2, _ := ps.Hash("secret123")
	if h1 == h2 {
		t.Error("Hash() returned identical hashes; salt is missing")
	}
}

func TestHash_RejectsPasswordOver72Bytes(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", 73)); err == nil {
		t.Fatal("Hash() should reject a 73-byte password")
	}
	if _, err := ps.Hash(strings.Repeat("a", 72)); err != nil {
		t.Fatalf("Hash() rejected a 72-byte password: %v", err)
	}
}

// =========================================================================
// VERIFY TESTS
// =========================================================================

func TestVerify(t *testing.T) {
	ps := newTestPasswordService()
	hash, err := ps.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name      string
		hash      string
		plaintext string
		wantErr   error
		wantAny   bool
	}{
		{name: "correct password", hash: hash, plaintext: "secret123"},
		{name: "wrong password", hash: hash, plaintext: "secret124", wantErr: ErrPasswordMismatch},
		{name: "empty password", hash: hash, plaintext: "", wantErr: ErrPasswordMismatch},
		{name: "garbage hash", hash: "not-a-hash", plaintext: "secret123", wantAny: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ps.Verify(tt.hash, tt.plaintext)
			switch {
			case tt.wantAny:
				if err == nil {
					t.Fatal("Verify() error = nil, want an error")
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Verify() error = %v, want %v", err, tt.wantErr)
				}
			default:
				if err != nil {
					t.Fatalf("Verify() error = %v", err)
				}
			}
		})
	}
}

func TestVerifyDummy_DoesNotPanic(t *testing.T) {
	ps := newTestPasswordService()

	ps.VerifyDummy("whatever")
	ps.VerifyDummy(strings.Repeat("x", 100))
	if ps.dummyHash == nil {
		t.Error("VerifyDummy() did not initialise its dummy hash")
	}
}
