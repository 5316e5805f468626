package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// トークン検証エラー。アクセスガードが原因別のメッセージに変換する。
var (
	ErrTokenMalformed       = errors.New("token is malformed")
	ErrTokenExpired         = errors.New("token is expired")
	ErrTokenMissingIdentity = errors.New("token has no identity")
)

// sessionClaims はセッショントークンのクレーム。
type sessionClaims struct {
	UserID string `json:"userId,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer はHS256署名のセッショントークンを発行・検証する。
// サーバー側には状態を持たず、失効はexpのみで表現する。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL はトークンの有効期間を返す。Cookieの有効期間に用いる。
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue はアカウントIDを埋め込んだトークンを発行する。
func (i *TokenIssuer) Issue(accountID string) (string, error) {
	iat := i.now().Truncate(time.Second)
	claims := sessionClaims{
		UserID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、アカウントIDを返す。
// アカウントの存在確認は行わない。
func (i *TokenIssuer) Verify(token string) (string, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenMalformed
	}

	if claims.UserID == "" {
		return "", ErrTokenMissingIdentity
	}
	return claims.UserID, nil
}
