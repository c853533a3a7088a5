package internal

import (
	"fmt"
	"salon-sync/runtime"
	"salon-sync/services"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	BrokerURL         string        `env:"BROKER_URL,required=true"`
	APIBaseURL        string        `env:"API_BASE_URL,required=true"`
	AccessToken       string        `env:"ACCESS_TOKEN,required=true"`
	TokenSecret       string        `env:"TOKEN_SECRET"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	ReconnectDelay    time.Duration `env:"RECONNECT_DELAY,default=5s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=4s"`
	PollInterval      time.Duration `env:"POLL_INTERVAL,default=10s"`
	StaleAfter        time.Duration `env:"UNREAD_STALE_AFTER,default=30s"`
	AlertDuration     time.Duration `env:"ALERT_DURATION,default=3s"`
	HandshakeTimeout  time.Duration `env:"HANDSHAKE_TIMEOUT,default=10s"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT,default=10s"`
	FanoutBufferSize  int           `env:"FANOUT_BUFFER_SIZE,default=256"`
	MergeConfirmed    bool          `env:"MERGE_CONFIRMED_MESSAGES,default=false"`
}

// LoadConfig reads the environment, after a .env file when one is present.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if config.HeartbeatInterval <= 0 {
		return Config{}, fmt.Errorf("HEARTBEAT_INTERVAL must be positive, got %s", config.HeartbeatInterval)
	}
	return config, nil
}

// SessionConfig maps the environment onto the session settings.
func (c Config) SessionConfig() services.SessionConfig {
	return services.SessionConfig{
		Connection: runtime.ConnectionConfig{
			ReconnectDelay:    c.ReconnectDelay,
			HeartbeatInterval: c.HeartbeatInterval,
		},
		PollInterval:   c.PollInterval,
		StaleAfter:     c.StaleAfter,
		AlertDuration:  c.AlertDuration,
		Focused:        true,
		MergeConfirmed: c.MergeConfirmed,
	}
}
