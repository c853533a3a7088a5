// Package auth reads the identity carried by the access token issued by the
// backend at login.
package auth

import (
	"encoding/json"
	"fmt"
	"salon-sync/domain"
	"salon-sync/errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID json.Number `json:"user_id"`
	Role   string      `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for a participant. The backend issues
// real tokens; this one serves local tooling and tests.
func GenerateToken(key []byte, id int64, role domain.SenderType, duration time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: json.Number(fmt.Sprint(id)),
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "salon-sync",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// IdentityFromToken extracts the participant from tokenString.
// With an empty key the signature is not checked: the backend verifies every
// call anyway and the client only needs to know who it is. With a key, the
// signature and expiry are validated first.
func IdentityFromToken(tokenString string, key []byte) (domain.Identity, error) {
	claims := &CustomClaims{}
	if len(key) == 0 {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
			return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
		}
	} else {
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
		}
		if !token.Valid {
			return domain.Identity{}, errors.ErrInvalidToken
		}
	}

	id, err := claims.UserID.Int64()
	if err != nil || id <= 0 {
		return domain.Identity{}, fmt.Errorf("%w: user_id %q", errors.ErrInvalidToken, claims.UserID)
	}
	role := domain.SenderType(claims.Role)
	if !role.Valid() {
		return domain.Identity{}, fmt.Errorf("%w: role %q", errors.ErrInvalidToken, claims.Role)
	}
	return domain.Identity{ID: id, Role: role, Token: tokenString}, nil
}
