package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashAndCheck(t *testing.T) {
	hash, err := HashPassword("open-sesame")
	require.NoError(t, err)
	assert.NotEqual(t, "open-sesame", hash)

	assert.True(t, CheckPasswordHash("open-sesame", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
	assert.False(t, CheckPasswordHash("open-sesame", "not-a-hash"))
}
