package signing

import (
	"errors"
	"testing"
	"time"
)

func newSigner() *Signer { return New("test-signing-secret-32-bytes-ok!") }

const testScope = "chat:user-2"

func TestSign_Verify_HappyPath(t *testing.T) {
	s := newSigner()
	exp := time.Now().Add(time.Hour)

	signed := s.Sign("user-1", testScope, exp)
	if !s.Verify("user-1", testScope, signed.Exp, signed.Sig) {
		t.Fatal("expected Verify to return true for valid signature")
	}
}

func TestVerify_Expired(t *testing.T) {
	s := newSigner()
	signed := s.Sign("user-1", testScope, time.Now().Add(-time.Hour))
	if s.Verify("user-1", testScope, signed.Exp, signed.Sig) {
		t.Fatal("expected Verify to return false for expired signature")
	}
}

func TestVerify_TamperedUserID(t *testing.T) {
	s := newSigner()
	signed := s.Sign("user-1", testScope, time.Now().Add(time.Hour))
	if s.Verify("user-2", testScope, signed.Exp, signed.Sig) {
		t.Fatal("expected Verify to fail for different user")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	s1 := newSigner()
	s2 := New("different-secret-32-bytes-padded!!")
	signed := s1.Sign("user-1", testScope, time.Now().Add(time.Hour))
	if s2.Verify("user-1", testScope, signed.Exp, signed.Sig) {
		t.Fatal("expected Verify to fail with different secret")
	}
}

func TestNew_DerivesKey(t *testing.T) {
	s := New("raw-secret")
	if string(s.Secret) == "raw-secret" || len(s.Secret) != 32 {
		t.Fatalf("expected a derived 32-byte key, got %d bytes", len(s.Secret))
	}
}

func TestIssueCheck_RoundTrip(t *testing.T) {
	s := newSigner()
	ticket := s.Issue("user-1", testScope, time.Minute)
	uid, err := s.Check(ticket, testScope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != "user-1" {
		t.Fatalf("expected user-1, got %q", uid)
	}
}

func TestCheck_WrongScope(t *testing.T) {
	s := newSigner()
	ticket := s.Issue("user-1", testScope, time.Minute)
	if _, err := s.Check(ticket, "chat:user-3"); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature, got %v", err)
	}
}

func TestCheck_Expired(t *testing.T) {
	s := newSigner()
	ticket := Encode(s.Sign("user-1", testScope, time.Now().Add(-time.Minute)))
	if _, err := s.Check(ticket, testScope); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, in := range []string{"", "abc", "!!!.sig", "Zm9v.sig"} {
		if _, err := Decode(in); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Decode(%q): expected ErrMalformed, got %v", in, err)
		}
	}
}
