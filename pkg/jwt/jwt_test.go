package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignValidate(t *testing.T) {
	m, err := NewManager("secret", time.Hour, "streamflow")
	require.NoError(t, err)

	tok, err := m.Sign("abc")
	require.NoError(t, err)

	sid, err := m.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "abc", sid)
}

func TestValidateRejects(t *testing.T) {
	m, err := NewManager("secret", time.Hour, "streamflow")
	require.NoError(t, err)
	other, err := NewManager("other", time.Hour, "streamflow")
	require.NoError(t, err)

	tok, err := other.Sign("abc")
	require.NoError(t, err)

	_, err = m.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	m, err := NewManager("secret", time.Minute, "streamflow")
	require.NoError(t, err)

	start := time.Now()
	m.now = func() time.Time { return start }
	tok, err := m.Sign("abc")
	require.NoError(t, err)

	m.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, err = m.Validate(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRandomSecret(t *testing.T) {
	a, err := NewManager("", 0, "streamflow")
	require.NoError(t, err)
	b, err := NewManager("", 0, "streamflow")
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, a.Lifetime())

	tok, err := a.Sign("abc")
	require.NoError(t, err)
	_, err = b.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
