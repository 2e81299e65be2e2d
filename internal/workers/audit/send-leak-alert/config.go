// internal/workers/audit/send-leak-alert/config.go
package sendleakalert

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
