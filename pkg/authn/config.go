package authn

import (
	"fmt"
	"time"

	"github.com/expopass/expopass-auth/pkg/lockout"
)

const (
	DefaultLoginTimeout               = 10 * time.Second
	DefaultMaxConcurrentVerifications = 8
)

// Config carries the tunable knobs of the authentication service. It is
// constructed once at process start and injected; the service never reads
// ambient state mid-flight.
type Config struct {
	Lockout                    lockout.Policy `json:"lockout"`
	LoginTimeout               time.Duration  `json:"login_timeout"`
	MaxConcurrentVerifications int            `json:"max_concurrent_verifications"`
}

// DefaultConfig returns the stock configuration
func DefaultConfig() Config {
	return Config{
		Lockout:                    lockout.DefaultPolicy(),
		LoginTimeout:               DefaultLoginTimeout,
		MaxConcurrentVerifications: DefaultMaxConcurrentVerifications,
	}
}

// Validate checks the configuration for usable values
func (c Config) Validate() error {
	if err := c.Lockout.Validate(); err != nil {
		return err
	}
	if c.LoginTimeout <= 0 {
		return fmt.Errorf("login timeout must be positive, got %s", c.LoginTimeout)
	}
	if c.MaxConcurrentVerifications <= 0 {
		return fmt.Errorf("max concurrent verifications must be positive, got %d", c.MaxConcurrentVerifications)
	}
	return nil
}
