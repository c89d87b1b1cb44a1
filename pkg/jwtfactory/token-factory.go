package jwtfactory

import (
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
)

// TokenFactory mints short-lived service tokens signed with the shared secret,
// used both towards the backend and by operators calling the monitor API.
type TokenFactory struct {
	tokenAuth           *jwtauth.JWTAuth
	issuer              string
	tokenExpirationTime time.Duration
	now                 func() time.Time
}

func New(tokenAuth *jwtauth.JWTAuth, issuer string, tokenExpirationTime time.Duration) *TokenFactory {
	return &TokenFactory{
		tokenAuth:           tokenAuth,
		issuer:              issuer,
		tokenExpirationTime: tokenExpirationTime,
		now:                 time.Now,
	}
}

func (tf *TokenFactory) Generate(subject string) (string, error) {
	timeNow := tf.now()
	claims := map[string]any{
		"sub": subject,
		"iss": tf.issuer,
		"exp": timeNow.Add(tf.tokenExpirationTime).Unix(),
		"iat": timeNow.Unix(),
	}
	_, tokenString, err := tf.tokenAuth.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("failed to encode token: %w", err)
	}
	return tokenString, nil
}
