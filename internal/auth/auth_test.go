package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMapsTokenToIdentity(t *testing.T) {
	info, err := Validate("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", info.UserID)
	assert.Equal(t, "alice", info.Name)
}

func TestValidateRejectsEmptyToken(t *testing.T) {
	_, err := Validate("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
