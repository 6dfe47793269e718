package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestLookupPrefersEnv(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, Store("svc", "me@example.com", "from-keyring"))
	t.Setenv(EnvPassword, "from-env")

	pw, err := Lookup("svc", "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "from-env", pw)
}

func TestLookupKeyring(t *testing.T) {
	keyring.MockInit()
	t.Setenv(EnvPassword, "")
	require.NoError(t, Store("svc", "me@example.com", "from-keyring"))

	pw, err := Lookup("svc", "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", pw)
}

func TestLookupNotFound(t *testing.T) {
	keyring.MockInit()
	t.Setenv(EnvPassword, "")

	_, err := Lookup("svc", "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}
