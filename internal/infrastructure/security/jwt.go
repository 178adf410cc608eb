package security

import (
	"errors"

	"github.com/golang-jwt/jwt/v4"
)

// ValidateJWT validates a JWT token and returns the claims
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// IdentityFromClaims extracts the stable user identity from JWT claims.
// Returns empty string when the token carries no identity.
func IdentityFromClaims(claims jwt.MapClaims) string {
	if id, ok := claims["userId"].(string); ok {
		return id
	}
	if id, ok := claims["sub"].(string); ok {
		return id
	}
	return ""
}
