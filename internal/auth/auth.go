package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

var ErrBadToken = errors.New("invalid token")

// legacy werkzeug hashes: pbkdf2:sha256:<iterations>$<salt>$<hex digest>
const legacyPrefix = "pbkdf2:sha256"

const legacyDefaultIterations = 600000

// bcrypt of a random string; compared against when the email is unknown so
// both login failures cost the same.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("care4u-timing-guard"), bcrypt.DefaultCost)

// NormalizeEmail lowercases and trims. All lookups go through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword accepts bcrypt hashes and the pbkdf2 hashes written by the
// previous Flask deployment.
func CheckPassword(hash, pw string) bool {
	if strings.HasPrefix(hash, legacyPrefix) {
		return checkLegacy(hash, pw)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// BurnCompare spends one bcrypt comparison without a real hash.
func BurnCompare(pw string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(pw))
}

func checkLegacy(hash, pw string) bool {
	parts := strings.SplitN(hash, "$", 3)
	if len(parts) != 3 {
		return false
	}
	method, salt, digest := parts[0], parts[1], parts[2]

	iter := legacyDefaultIterations
	if rest := strings.TrimPrefix(method, legacyPrefix); rest != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(rest, ":"))
		if err != nil || n <= 0 {
			return false
		}
		iter = n
	}

	want, err := hex.DecodeString(digest)
	if err != nil || len(want) == 0 {
		return false
	}
	got := pbkdf2.Key([]byte(pw), []byte(salt), iter, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

func MakeToken(uid, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		UserID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

func ParseToken(raw, secret string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || c.UserID == "" {
		return nil, ErrBadToken
	}
	return c, nil
}
