package internal

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	r := require.New(t)
	t.Setenv("BROKER_URL", "http://localhost:8080")
	t.Setenv("API_BASE_URL", "http://localhost:8080")
	t.Setenv("ACCESS_TOKEN", "tok")

	config, err := LoadConfig()

	r.NoError(err)
	r.Equal(5*time.Second, config.ReconnectDelay)
	r.Equal(4*time.Second, config.HeartbeatInterval)
	r.Equal(30*time.Second, config.StaleAfter)
	r.Equal("INFO", config.LogLevel)

	session := config.SessionConfig()
	r.Equal(5*time.Second, session.Connection.ReconnectDelay)
	r.True(session.Focused)
	r.False(session.MergeConfirmed)
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	for _, key := range []string{"BROKER_URL", "API_BASE_URL", "ACCESS_TOKEN"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	_, err := LoadConfig()
	require.Error(t, err)
}
