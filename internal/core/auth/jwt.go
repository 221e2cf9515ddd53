package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"swipe-engine/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role")
)

// Claims 由外部认证系统签发；Role 为 requester / provider / admin
type Claims struct {
	UID  string `json:"uid"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Kind() domain.Kind { return domain.Kind(c.Role) }

// JWTer 与认证系统共享 HS256 密钥；Issue 仅供本地调试和测试
type JWTer struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

func (j *JWTer) Issue(uid, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UID:  uid,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    j.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.Secret)
}

func (j *JWTer) Parse(tokenStr string) (*Claims, error) {
	var c Claims
	t, err := jwt.ParseWithClaims(tokenStr, &c, func(*jwt.Token) (any, error) { return j.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(60*time.Second))
	if err != nil {
		return nil, err
	}
	if !t.Valid || c.UID == "" {
		return nil, ErrInvalidToken
	}
	if !c.Kind().Valid() {
		return nil, ErrUnknownRole
	}
	return &c, nil
}
