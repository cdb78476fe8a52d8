package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-driver/internal/domain/driver"
)

func TestIssueDriverTokenAndAuthFrame(t *testing.T) {
	mgr, err := NewManager("s3cret", time.Hour)
	require.NoError(t, err)

	tok, claims, err := mgr.IssueDriverToken("d1")
	require.NoError(t, err)
	assert.Equal(t, driver.RoleDriver, claims.Role)
	assert.Equal(t, "d1", claims.Subject)

	parsed := &Claims{}
	_, err = jwtlib.NewParser().ParseWithClaims(tok, parsed, func(*jwtlib.Token) (any, error) {
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, driver.RoleDriver, parsed.Role)

	frame := AuthFrame(tok)
	assert.Equal(t, "Bearer "+tok, frame.Token)
	assert.Equal(t, frame, AuthFrame("Bearer "+tok))

	_, _, err = mgr.IssueDriverToken(" ")
	assert.Error(t, err)
}

func TestExpired(t *testing.T) {
	mgr, err := NewManager("s3cret", time.Minute)
	require.NoError(t, err)
	tok, _, err := mgr.IssueDriverToken("d1")
	require.NoError(t, err)

	expired, err := Expired("Bearer "+tok, time.Now())
	require.NoError(t, err)
	assert.False(t, expired)

	expired, err = Expired(tok, time.Now().Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, expired)

	noExp, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{"sub": "d1"}).SignedString([]byte("k"))
	require.NoError(t, err)
	expired, err = Expired(noExp, time.Now())
	require.NoError(t, err)
	assert.False(t, expired)

	_, err = Expired("not-a-jwt", time.Now())
	assert.Error(t, err)

	_, err = NewManager("  ", time.Minute)
	assert.Error(t, err)
}
