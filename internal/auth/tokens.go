package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenScope   = errors.New("token not valid for this link")
)

// TokenConfig конфигурация токенов доступа к ссылкам
type TokenConfig struct {
	SecretKey []byte
	TokenTTL  time.Duration
	Issuer    string
}

// LinkClaims claims токена доступа: токен действует только для одного
// короткого кода
type LinkClaims struct {
	ShortCode string `json:"short_code"`
	jwt.RegisteredClaims
}

// TokenService выдает и проверяет краткоживущие токены доступа к
// защищенным паролем ссылкам. Выдача происходит после успешной
// проверки пароля; резолвер только проверяет токен.
type TokenService struct {
	config *TokenConfig
}

// NewTokenService создает новый сервис токенов
func NewTokenService(config *TokenConfig) *TokenService {
	return &TokenService{
		config: config,
	}
}

// Issue создает токен доступа, привязанный к короткому коду
func (s *TokenService) Issue(shortCode string) (string, error) {
	now := time.Now()
	claims := LinkClaims{
		ShortCode: shortCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   shortCode,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.config.SecretKey)
}

// Verify проверяет подпись, срок действия и привязку токена к коду
func (s *TokenService) Verify(tokenString, shortCode string) error {
	if tokenString == "" {
		return ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &LinkClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.config.SecretKey, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}

	claims, ok := token.Claims.(*LinkClaims)
	if !ok {
		return ErrInvalidToken
	}
	if claims.ShortCode != shortCode {
		return ErrTokenScope
	}

	return nil
}
