package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims represents the claims carried by an access token issued by the
// external auth service. The core never issues tokens, it only validates them.
type Claims struct {
	jwt.RegisteredClaims
	UserID  int64  `json:"user_id"`
	LoginID string `json:"login_id"`
	Role    string `json:"role"` // "user", "vet", "admin"
}

// Principal is the authenticated identity attached to a connection or request.
type Principal struct {
	UserID  int64
	LoginID string
	Role    string
	Expiry  time.Time
}

// Validator validates access tokens.
type Validator interface {
	Validate(tokenString string) (*Principal, error)
}

// HMACValidator validates tokens signed with a shared HMAC secret.
type HMACValidator struct {
	secret []byte
	issuer string
}

// NewHMACValidator creates a validator for HS256-signed tokens.
func NewHMACValidator(secret, issuer string) *HMACValidator {
	return &HMACValidator{secret: []byte(secret), issuer: issuer}
}

// Validate checks signature and expiry and returns the authenticated principal.
func (v *HMACValidator) Validate(tokenString string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, ErrInvalidToken
	}

	loginID := claims.LoginID
	if loginID == "" {
		loginID = claims.Subject
	}
	if loginID == "" {
		return nil, ErrInvalidToken
	}

	var expiry time.Time
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}

	return &Principal{
		UserID:  claims.UserID,
		LoginID: loginID,
		Role:    strings.ToLower(claims.Role),
		Expiry:  expiry,
	}, nil
}

// FromBearer strips the "Bearer " prefix from an Authorization header value.
// Returns the raw token and whether the prefix was present.
func FromBearer(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	return strings.TrimPrefix(header, prefix), true
}
