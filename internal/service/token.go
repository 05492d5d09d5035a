package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kube-rca/auth-api/internal/model"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = fmt.Errorf("%w: token expired", ErrInvalidToken)
	ErrTokenSignature = fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	ErrTokenMalformed = fmt.Errorf("%w: malformed token", ErrInvalidToken)
	ErrTokenPayload   = fmt.Errorf("%w: invalid token payload", ErrInvalidToken)
)

type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret, expiresIn string) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET is required", ErrMisconfigured)
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ParseExpiry(expiresIn),
		now:    time.Now,
	}, nil
}

func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

func (s *TokenService) Issue(claims model.AuthClaims) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   claims.Subject,
		"email": claims.Email,
		"iat":   jwt.NewNumericDate(now),
		"exp":   jwt.NewNumericDate(now.Add(s.ttl)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) Verify(tokenStr string) (*model.AuthClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenPayload
	}
	return decodeClaims(mapClaims)
}

// decodeClaims requires sub and email to be present strings.
func decodeClaims(claims jwt.MapClaims) (*model.AuthClaims, error) {
	subject, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrTokenPayload
	}
	email, ok := claims["email"].(string)
	if !ok {
		return nil, ErrTokenPayload
	}
	return &model.AuthClaims{Subject: subject, Email: email}, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}
