package auth

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrInvalidToken is returned when token validation fails
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when token is expired
	ErrExpiredToken = errors.New("token expired")
	// ErrInvalidClaims is returned when claims are invalid
	ErrInvalidClaims = errors.New("invalid claims")
)

// AllSessions grants access to every session
const AllSessions = "*"

// DashboardClaims are the claims of a proctor dashboard token. Sessions
// lists the session keys (exam_id or question_set_id) the bearer may read.
type DashboardClaims struct {
	Sessions []string `json:"sessions"`
	jwt.RegisteredClaims
}

// CanWatch reports whether the token grants access to sessionKey
func (c *DashboardClaims) CanWatch(sessionKey string) bool {
	return slices.Contains(c.Sessions, AllSessions) || slices.Contains(c.Sessions, sessionKey)
}

// JWTService issues and validates HS256 dashboard tokens
type JWTService struct {
	secretKey []byte
	issuer    string
	expiresIn time.Duration
	clock     clockwork.Clock
}

// NewJWTService creates a new JWT service
func NewJWTService(secretKey, issuer string, expiresIn time.Duration) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		expiresIn: expiresIn,
		clock:     clockwork.NewRealClock(),
	}
}

func (s *JWTService) WithClock(clock clockwork.Clock) *JWTService {
	s.clock = clock
	return s
}

// GenerateToken issues a token for subject scoped to sessions
func (s *JWTService) GenerateToken(subject string, sessions []string) (string, error) {
	if len(sessions) == 0 {
		return "", ErrInvalidClaims
	}

	now := s.clock.Now()
	claims := DashboardClaims{
		Sessions: sessions,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiresIn)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken validates and parses a dashboard token
func (s *JWTService) ValidateToken(tokenString string) (*DashboardClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DashboardClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secretKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.clock.Now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*DashboardClaims)
	if !ok || !token.Valid || len(claims.Sessions) == 0 {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}
