// internal/workers/audit/run-leak-audit/config.go
package runleakaudit

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
