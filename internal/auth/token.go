package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 30 * 24 * time.Hour

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func issueToken(secret []byte, userID int, email string) (string, error) {
	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(secret []byte, token string) (int, string, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, "", errors.New("invalid token")
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok {
		return 0, "", errors.New("invalid claims")
	}
	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID == 0 {
		return 0, "", errors.New("invalid subject")
	}
	return userID, claims.Email, nil
}
