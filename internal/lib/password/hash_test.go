package password_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traderoom/trading-academy/internal/lib/password"
)

func TestHashRoundtrip(t *testing.T) {
	hash, err := password.GetHash("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.NoError(t, password.CompareHash(hash, "correct horse battery staple"))
	assert.Error(t, password.CompareHash(hash, "wrong password"))
}
