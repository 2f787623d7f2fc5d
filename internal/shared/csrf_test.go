package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSRFTokenLifecycle(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := &Session{ID: "abc", values: map[string]string{}}

	token, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	again, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, token, again, "the token is stable within a session")

	assert.NoError(t, m.VerifyToken(context.Background(), sess, token))
	assert.ErrorIs(t, m.VerifyToken(context.Background(), sess, token+"x"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, m.VerifyToken(context.Background(), sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, m.VerifyToken(context.Background(), nil, token), ErrCSRFTokenMissing)

	_, err = m.EnsureToken(context.Background(), nil)
	assert.ErrorIs(t, err, ErrSessionMissing)
}
