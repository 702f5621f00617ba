package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"nedwiyt/internal/datastore"
)

const issuerName = "nedwiyt"

// Claims carried by locally issued session tokens.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("invalid session ttl %v", ttl)
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue creates a session for u with a fresh token id.
func (i *Issuer) Issue(u datastore.User) (datastore.Session, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := &Claims{
		UserID: u.ID,
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuerName,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return datastore.Session{}, fmt.Errorf("sign session token: %w", err)
	}
	return datastore.Session{
		Token:     signed,
		TokenID:   claims.ID,
		UserID:    u.ID,
		Email:     u.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Parse verifies the signature, algorithm and expiry of token.
func (i *Issuer) Parse(token string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	// jwt/v4 validates exp against the wall clock; recheck with ours.
	if claims.ExpiresAt == nil || !i.now().Before(claims.ExpiresAt.Time) {
		return nil, errors.New("token expired")
	}
	if claims.Issuer != issuerName || claims.ID == "" {
		return nil, errors.New("token not issued by this server")
	}
	return claims, nil
}

func (c *Claims) session(token string) datastore.Session {
	return datastore.Session{
		Token:     token,
		TokenID:   c.ID,
		UserID:    c.UserID,
		Email:     c.Email,
		ExpiresAt: c.ExpiresAt.Time,
	}
}
