package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestSealOpen(t *testing.T) {
	box, err := NewBox(testKey)
	require.NoError(t, err)

	sealed, err := box.Seal("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", sealed)

	opened, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", opened)

	empty, err := box.Seal("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	box, err := NewBox(testKey)
	require.NoError(t, err)
	sealed, err := box.Seal("s3cret")
	require.NoError(t, err)

	other, err := NewBox("fedcba9876543210fedcba9876543210")
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.Error(t, err)
}

func TestNewBoxRejectsShortKey(t *testing.T) {
	_, err := NewBox("short")
	assert.Error(t, err)
}
