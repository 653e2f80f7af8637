package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenService emite y valida los JWT de acceso y de refresco. Cada clase de
// token se firma con un secreto distinto para que comprometer uno no permita
// forjar el otro.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
}

// Claims transporta el id de usuario junto a los claims registrados.
type Claims struct {
	UserID int64 `json:"id"`
	jwt.RegisteredClaims
}

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenService {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        "jomat-backend",
	}
}

// AccessTTL devuelve la vigencia configurada del token de acceso.
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// RefreshTTL devuelve la vigencia configurada del token de refresco.
func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *TokenService) IssueAccessToken(userID int64) (string, error) {
	if len(s.accessSecret) == 0 {
		return "", ErrTokenInvalid
	}
	return s.sign(userID, s.accessSecret, s.accessTTL)
}

func (s *TokenService) IssueRefreshToken(userID int64) (string, error) {
	if len(s.refreshSecret) == 0 {
		return "", ErrTokenInvalid
	}
	return s.sign(userID, s.refreshSecret, s.refreshTTL)
}

func (s *TokenService) ParseAccessToken(token string) (Claims, error) {
	return s.parse(token, s.accessSecret)
}

func (s *TokenService) ParseRefreshToken(token string) (Claims, error) {
	return s.parse(token, s.refreshSecret)
}

func (s *TokenService) sign(userID int64, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			// El jti hace único cada token emitido, incluso dentro del
			// mismo segundo; la rotación siempre produce un string nuevo.
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (s *TokenService) parse(tokenString string, secret []byte) (Claims, error) {
	if len(secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrTokenInvalid
	}
	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if claims.UserID <= 0 || claims.Issuer != s.issuer {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}
