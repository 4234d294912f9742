package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"

	// tokenAudience отличает токены трекера от других сервисов с тем же секретом.
	tokenAudience = "life-tracker-api"
	clockSkew     = 30 * time.Second
)

var (
	ErrInvalidToken      = errors.New("token is invalid")
	ErrTokenTypeMismatch = errors.New("token type mismatch")
)

// Claims: полезная нагрузка JWT. sub содержит пользователя, jti идентификатор
// токена (для refresh это id сессии).
type Claims struct {
	TokenType TokenType `json:"typ"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

func (c *Claims) SessionID() (uuid.UUID, error) {
	return uuid.Parse(c.ID)
}

type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshID        uuid.UUID
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenManager подписывает и проверяет HS256-токены.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    map[TokenType]time.Duration
	now    func() time.Time
}

func NewTokenManager(secret, issuer string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl: map[TokenType]time.Duration{
			TokenTypeAccess:  accessTTL,
			TokenTypeRefresh: refreshTTL,
		},
		now: time.Now,
	}
}

// NewTokenPair выпускает access и refresh токены; jti refresh-токена
// совпадает с идентификатором сессии в хранилище.
func (m *TokenManager) NewTokenPair(userID uuid.UUID) (TokenPair, error) {
	pair := TokenPair{RefreshID: uuid.New()}

	var err error
	if pair.AccessToken, pair.AccessExpiresAt, err = m.sign(userID, uuid.New(), TokenTypeAccess); err != nil {
		return TokenPair{}, err
	}
	if pair.RefreshToken, pair.RefreshExpiresAt, err = m.sign(userID, pair.RefreshID, TokenTypeRefresh); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (m *TokenManager) ParseAccessToken(raw string) (*Claims, error) {
	return m.parse(raw, TokenTypeAccess)
}

func (m *TokenManager) ParseRefreshToken(raw string) (*Claims, error) {
	return m.parse(raw, TokenTypeRefresh)
}

func (m *TokenManager) sign(userID, tokenID uuid.UUID, tokenType TokenType) (string, time.Time, error) {
	issuedAt := m.now().UTC()
	expiresAt := issuedAt.Add(m.ttl[tokenType])

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{tokenAudience},
			ID:        tokenID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, expiresAt, nil
}

// parse проверяет подпись, issuer, audience и срок. Все ошибки, кроме
// несовпадения типа, оборачивают ErrInvalidToken.
func (m *TokenManager) parse(raw string, want TokenType) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(m.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != want {
		return nil, ErrTokenTypeMismatch
	}
	return claims, nil
}
