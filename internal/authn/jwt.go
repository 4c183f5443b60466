// Package authn issues and verifies the bearer credential described at the
// contract level by §6 ("claims include userId, role, stationId?"): strip a
// "Bearer " prefix, reject an empty token, and verify claims via
// golang-jwt/jwt.
package authn

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
)

// Claims is the payload embedded in the bearer token (§6).
type Claims struct {
	UserID    string  `json:"userId"`
	Role      string  `json:"role"`
	StationID *string `json:"stationId,omitempty"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies tokens against a single shared secret, the
// simplest scheme consistent with §6's "Token lifetime is policy, not core".
type Issuer struct {
	secret   []byte
	expiresIn time.Duration
}

func NewIssuer(secret string, expiresIn time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), expiresIn: expiresIn}
}

// Issue mints a signed token for the given principal.
func (i *Issuer) Issue(userID idgen.ID, role models.Role, stationID *idgen.ID) (string, error) {
	claims := Claims{
		UserID: userID.String(),
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(i.expiresIn)),
		},
	}
	if stationID != nil {
		s := stationID.String()
		claims.StationID = &s
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify parses and validates a bearer token, returning the decoded claims.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("authn: unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("authn: invalid token")
	}
	return claims, nil
}

// ExtractBearer strips a "Bearer " prefix from an Authorization header
// value before the remainder is treated as a credential.
func ExtractBearer(header string) string {
	if header == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return header
}

// Principal is the decoded, typed form of Claims, ready to become an
// authz.Caller.
type Principal struct {
	UserID    idgen.ID
	Role      models.Role
	StationID *idgen.ID
}

func (c *Claims) Principal() (Principal, error) {
	uid, err := idgen.Parse(c.UserID)
	if err != nil {
		return Principal{}, fmt.Errorf("authn: invalid userId claim: %w", err)
	}
	p := Principal{UserID: uid, Role: models.Role(c.Role)}
	if c.StationID != nil {
		sid, err := idgen.Parse(*c.StationID)
		if err != nil {
			return Principal{}, fmt.Errorf("authn: invalid stationId claim: %w", err)
		}
		p.StationID = &sid
	}
	return p, nil
}
