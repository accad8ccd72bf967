// Package signing issues short-lived HMAC tickets for transports that cannot
// carry an Authorization header, such as browser websocket upgrades.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

var (
	ErrMalformed = errors.New("signing: malformed ticket")
	ErrExpired   = errors.New("signing: ticket expired")
	ErrSignature = errors.New("signing: bad signature")
)

type Signer struct {
	Secret []byte
}

// Signed is the decoded content of a ticket.
type Signed struct {
	UID   string
	Scope string
	Exp   int64
	Sig   string
}

// New derives a dedicated ticket key from secret so the raw JWT secret
// is never used directly for a second purpose.
func New(secret string) *Signer {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("movie-diary/ticket/v1"))
	if _, err := io.ReadFull(r, key); err != nil {
		panic(err)
	}
	return &Signer{Secret: key}
}

func (s *Signer) Sign(userID, scope string, exp time.Time) Signed {
	sig := s.signValue(userID, scope, exp.Unix())
	return Signed{UID: userID, Scope: scope, Exp: exp.Unix(), Sig: sig}
}

// Issue returns an opaque ticket string for userID limited to scope.
func (s *Signer) Issue(userID, scope string, ttl time.Duration) string {
	return Encode(s.Sign(userID, scope, time.Now().Add(ttl)))
}

func (s *Signer) Verify(userID, scope string, exp int64, sig string) bool {
	if time.Now().Unix() > exp {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(s.signValue(userID, scope, exp)))
}

// Check decodes and verifies a ticket issued for scope and returns its user id.
func (s *Signer) Check(ticket, scope string) (string, error) {
	signed, err := Decode(ticket)
	if err != nil {
		return "", err
	}
	if signed.Scope != scope {
		return "", ErrSignature
	}
	if time.Now().Unix() > signed.Exp {
		return "", ErrExpired
	}
	if !s.Verify(signed.UID, signed.Scope, signed.Exp, signed.Sig) {
		return "", ErrSignature
	}
	return signed.UID, nil
}

func (s *Signer) signValue(userID, scope string, exp int64) string {
	mac := hmac.New(sha256.New, s.Secret)
	mac.Write([]byte(userID))
	mac.Write([]byte("|"))
	mac.Write([]byte(scope))
	mac.Write([]byte("|"))
	mac.Write([]byte(strconv.FormatInt(exp, 10)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func Encode(signed Signed) string {
	payload := signed.UID + "|" + signed.Scope + "|" + strconv.FormatInt(signed.Exp, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + signed.Sig
}

func Decode(ticket string) (Signed, error) {
	head, sig, ok := strings.Cut(strings.TrimSpace(ticket), ".")
	if !ok || head == "" || sig == "" {
		return Signed{}, ErrMalformed
	}
	raw, err := base64.RawURLEncoding.DecodeString(head)
	if err != nil {
		return Signed{}, ErrMalformed
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 3 || parts[0] == "" {
		return Signed{}, ErrMalformed
	}
	exp, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Signed{}, ErrMalformed
	}
	return Signed{UID: parts[0], Scope: parts[1], Exp: exp, Sig: sig}, nil
}
