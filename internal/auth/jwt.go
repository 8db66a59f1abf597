package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"school/internal/school"
)

// Claims is the payload of an access token issued by the auth provider.
// user_metadata is left out: account holders can rewrite it.
type Claims struct {
	Email       string      `json:"email"`
	Role        string      `json:"role"`
	AppMetadata AppMetadata `json:"app_metadata"`
	jwt.RegisteredClaims
}

// AppMetadata is the server-controlled part of the account.
type AppMetadata struct {
	Role string `json:"role"`
}

// SchoolRole returns the role granted to the account.
func (c Claims) SchoolRole() (school.Role, error) {
	return school.ParseRole(c.AppMetadata.Role)
}

// Parse validates a token and returns claims. An empty issuer skips the issuer check.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(key), nil
	}, opts...)
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	return *claims, nil
}
