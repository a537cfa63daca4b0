package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prudhvinik1/storeledger/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingStore = errors.New("token has no store")
)

// AuthService verifies bearer tokens issued by head office. The agent never
// issues tokens; it only checks signatures against the shared secret.
type AuthService struct {
	jwtSecret string
	now       func() time.Time
}

func NewAuthService(jwtSecret string) *AuthService {
	return &AuthService{
		jwtSecret: jwtSecret,
		now:       time.Now,
	}
}

// VerifyToken checks the signature and expiry and returns the submitter the
// token was issued to.
func (s *AuthService) VerifyToken(tokenString string) (*models.Submitter, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())

	if err != nil {
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return nil, ErrInvalidToken
	}

	storeID, _ := claims["store_id"].(string)
	if storeID == "" {
		return nil, ErrMissingStore
	}

	name, _ := claims["name"].(string)
	role, _ := claims["role"].(string)

	return &models.Submitter{
		UserID:  userID,
		Name:    name,
		Role:    role,
		StoreID: storeID,
	}, nil
}
