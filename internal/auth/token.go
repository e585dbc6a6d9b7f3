package auth

import (
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/emreisik/kahveqr/internal/apperr"
)

// Customer and business tokens live in disjoint claim namespaces ("userId"
// vs "businessUserId") so one can never satisfy the other side's middleware.

const TokenTTL = 30 * 24 * time.Hour

func secret() []byte {
	s := os.Getenv("JWT_SECRET")
	if s == "" {
		s = "your-secret-key"
	}
	return []byte(s)
}

func GenerateCustomerToken(userID string) (string, error) {
	return sign(jwt.MapClaims{
		"userId": userID,
		"iat":    time.Now().Unix(),
		"exp":    time.Now().Add(TokenTTL).Unix(),
	})
}

func GenerateBusinessToken(businessUserID string) (string, error) {
	return sign(jwt.MapClaims{
		"businessUserId": businessUserID,
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(TokenTTL).Unix(),
	})
}

func sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret())
}

// VerifyCustomerToken returns the customer id bound to the token.
func VerifyCustomerToken(tokenString string) (string, error) {
	return verify(tokenString, "userId")
}

// VerifyBusinessToken returns the business user id bound to the token.
func VerifyBusinessToken(tokenString string) (string, error) {
	return verify(tokenString, "businessUserId")
}

func verify(tokenString, claim string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.New(apperr.Forbidden, "Invalid or expired token")
		}
		return secret(), nil
	})
	if err != nil || !token.Valid {
		return "", apperr.New(apperr.Forbidden, "Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", apperr.New(apperr.Forbidden, "Invalid or expired token")
	}

	id, ok := claims[claim].(string)
	if !ok || id == "" {
		return "", apperr.New(apperr.Forbidden, "Invalid or expired token")
	}
	return id, nil
}
