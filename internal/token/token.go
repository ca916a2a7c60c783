// Package token implements the bearer-token identity check of spec.md
// §4.E: an ES256 JWT carried in an `accesstoken` request header, decoded
// against a single process-wide public key. Grounded on
// original_source/server/bastionai_common/src/auth.rs, which this
// package follows for its claim shape and error strings, and on spec.md
// §9's note that the decoding key is a process-wide singleton — modeled
// here with sync.Once the way the teacher's identity loading is a
// one-shot affair at startup.
package token

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/yutiansut/bastionlab/internal/errs"
)

// HeaderName is the metadata key carrying the bearer token.
const HeaderName = "accesstoken"

// Claims is the decoded identity carried by a bearer token, matching
// original_source's JwtClaims{userid, username, exp} exactly.
type Claims struct {
	UserID   int64  `json:"userid"`
	Username string `json:"username"`
	Exp      int64  `json:"exp"`
}

// Valid satisfies jwt.Claims. jwt/v4 calls this itself during
// ParseWithClaims and treats a non-nil return as a failed parse; unlike
// v5, v4 does not inspect arbitrary claims types for an Exp field on its
// own, so expiry has to be checked here explicitly.
func (c Claims) Valid() error {
	if c.Exp != 0 && time.Now().Unix() > c.Exp {
		return fmt.Errorf("token is expired")
	}
	return nil
}

// Identity is what the rest of the service sees once a token has been
// verified (or the empty Identity, when token checking is disabled or no
// header was sent — spec.md §4.E's pass-through case).
type Identity struct {
	UserID   int64
	Username string
	Present  bool
}

var (
	policyOnce sync.Once
	policyKey  *ecdsa.PublicKey
	policyErr  error
)

// LoadPolicy reads an ECDSA P-256 public key from a PEM file and installs
// it as the process-wide decoding key. Safe to call at most once per
// process (a second call is a programmer error, not a runtime path);
// cmd/server/main.go calls it during startup, before serving traffic.
func LoadPolicy(path string) error {
	policyOnce.Do(func() {
		raw, err := os.ReadFile(path)
		if err != nil {
			policyErr = err
			return
		}
		block, _ := pem.Decode(raw)
		if block == nil {
			policyErr = fmt.Errorf("token: no PEM block in %q", path)
			return
		}
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			policyErr = err
			return
		}
		ecPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			policyErr = fmt.Errorf("token: key in %q is not ECDSA", path)
			return
		}
		policyKey = ecPub
	})
	return policyErr
}

// Enabled reports whether a decoding key has been installed. When false,
// Verify always returns the empty (pass-through) Identity.
func Enabled() bool {
	return policyKey != nil
}

// Verify decodes and validates an accesstoken header value against the
// process-wide policy. An empty header with no policy installed yields
// the empty Identity, unauthenticated but not rejected (spec.md §4.E).
// A malformed header (any byte outside visible ASCII other than tab) is
// InvalidArgument ("Invalid AccessToken header"); a header that fails to
// decode or verify is also InvalidArgument ("Failed to decode
// AccessToken"), matching original_source's wording.
func Verify(headerValue string) (Identity, error) {
	if !Enabled() {
		return Identity{}, nil
	}
	if headerValue == "" {
		return Identity{}, nil
	}
	for i := 0; i < len(headerValue); i++ {
		if c := headerValue[i]; c != '\t' && (c < 0x20 || c > 0x7e) {
			return Identity{}, errs.New(errs.InvalidArgument, "Invalid AccessToken header")
		}
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(headerValue, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return policyKey, nil
	})
	if err != nil {
		return Identity{}, errs.Wrap(errs.InvalidArgument, err, "Failed to decode AccessToken")
	}
	if !parsed.Valid {
		return Identity{}, errs.New(errs.InvalidArgument, "Failed to decode AccessToken")
	}

	return Identity{UserID: claims.UserID, Username: claims.Username, Present: true}, nil
}
