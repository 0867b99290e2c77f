package principal_test

import (
	"testing"

	"github.com/kilnworks/go-admin-gate/principal"
	"github.com/stretchr/testify/require"
)

func TestNewNormalizes(t *testing.T) {
	p, err := principal.New("  Admin@Example.COM ", "+91 98765-43210")
	require.NoError(t, err)
	require.Equal(t, "admin@example.com", p.Email)
	require.Equal(t, "+919876543210", p.Phone)
}

func TestNewRequiresBothChannels(t *testing.T) {
	_, err := principal.New("", "+919876543210")
	require.Error(t, err)

	_, err = principal.New("admin@example.com", "")
	require.Error(t, err)
}

func TestMatching(t *testing.T) {
	p, err := principal.New("admin@example.com", "+919876543210")
	require.NoError(t, err)

	require.True(t, p.MatchesEmail("ADMIN@example.com "))
	require.False(t, p.MatchesEmail("someone@example.com"))
	require.True(t, p.MatchesPhone("+91 (98765) 43210"))
	require.False(t, p.MatchesPhone("+919876543211"))
}
