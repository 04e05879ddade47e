// File: internal/auth/jwt.go
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iyunix/go-roomchat/internal/domain"
)

const tokenLifetime = 24 * time.Hour

// GenerateToken issues a signed token carrying the participant's
// display name and tier.
func GenerateToken(name string, tier domain.Tier, secretKey []byte) (string, error) {
	if name == "" {
		return "", errors.New("name cannot be empty")
	}

	claims := jwt.MapClaims{
		"sub":  name,
		"tier": string(tier),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(tokenLifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey)
}

// ValidateToken checks the signature and returns the embedded name and
// tier. Unknown tier claims degrade to anonymous.
func ValidateToken(tokenString string, secretKey []byte) (string, domain.Tier, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey, nil
	})
	if err != nil {
		return "", domain.TierAnonymous, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", domain.TierAnonymous, errors.New("invalid token")
	}

	name, _ := claims["sub"].(string)
	if name == "" {
		return "", domain.TierAnonymous, errors.New("token missing subject")
	}
	tierClaim, _ := claims["tier"].(string)
	return name, domain.ParseTier(tierClaim), nil
}
