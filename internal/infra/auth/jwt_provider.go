package auth

import (
	"errors"
	"strconv"
	"time"

	"bookstore/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid token")

// トークンから取り出す本人情報
type Claims struct {
	UserID        int64
	Role          model.Role
	PickupPointID *int64
	TokenVersion  int
}

// JWTProvider はHS256のアクセストークンを発行・検証する
type JWTProvider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTProvider(secret string, ttl time.Duration) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue はアクセストークンを発行する
func (p *JWTProvider) Issue(c Claims) (string, time.Time, error) {
	now := p.now()
	expiresAt := now.Add(p.ttl)

	mc := jwt.MapClaims{
		"sub":  strconv.FormatInt(c.UserID, 10),
		"role": string(c.Role),
		"tv":   c.TokenVersion,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}
	if c.PickupPointID != nil {
		mc["pp"] = *c.PickupPointID
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse は署名・期限を検証してclaimsを返す
func (p *JWTProvider) Parse(raw string) (Claims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}

	userID, err := parseInt64(mc["sub"])
	if err != nil || userID <= 0 {
		return Claims{}, ErrInvalidToken
	}

	role, ok := mc["role"].(string)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	switch model.Role(role) {
	case model.RoleUser, model.RoleAdmin, model.RoleWorker:
	default:
		return Claims{}, ErrInvalidToken
	}

	tv, err := parseInt64(mc["tv"])
	if err != nil || tv < 0 {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{UserID: userID, Role: model.Role(role), TokenVersion: int(tv)}
	if v, ok := mc["pp"]; ok && v != nil {
		pp, err := parseInt64(v)
		if err != nil || pp <= 0 {
			return Claims{}, ErrInvalidToken
		}
		out.PickupPointID = &pp
	}
	return out, nil
}

func parseInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, errors.New("invalid int")
	}
}
