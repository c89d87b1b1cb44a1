package jwtfactory

import (
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	tokenAuth := jwtauth.New("HS256", []byte("secret"), nil)
	factory := New(tokenAuth, "opsmonitor", time.Hour)

	tokenString, err := factory.Generate("poller")
	require.NoError(t, err)

	token, err := jwtauth.VerifyToken(tokenAuth, tokenString)
	require.NoError(t, err)
	assert.Equal(t, "poller", token.Subject())
	assert.Equal(t, "opsmonitor", token.Issuer())
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.Expiration(), time.Minute)
}

func TestGenerateExpired(t *testing.T) {
	tokenAuth := jwtauth.New("HS256", []byte("secret"), nil)
	factory := New(tokenAuth, "opsmonitor", time.Minute)
	factory.now = func() time.Time { return time.Now().Add(-time.Hour) }

	tokenString, err := factory.Generate("poller")
	require.NoError(t, err)

	_, err = jwtauth.VerifyToken(tokenAuth, tokenString)
	assert.Error(t, err)
}
