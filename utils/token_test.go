package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceTokenRoundTrip(t *testing.T) {
	token, err := GenerateDeviceToken("s3cret", "device-1", "session-1")
	require.NoError(t, err)

	claims, err := ValidateDeviceToken("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, "device-1", claims.DeviceID)
	assert.Equal(t, "session-1", claims.SessionID)

	_, err = ValidateDeviceToken("other", token)
	assert.Error(t, err)

	_, err = ValidateDeviceToken("s3cret", "garbage")
	assert.Error(t, err)

	_, err = GenerateDeviceToken("", "device-1", "session-1")
	assert.Error(t, err)
}
