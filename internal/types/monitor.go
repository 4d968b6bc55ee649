package types

import "time"

const (
	DefaultCheckTimeout = 10 * time.Second
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	DefaultMaxBodyBytes = 10 << 20
	DefaultMaxRedirects = 10
)

// CheckConfig holds the outbound request settings shared by every keyword check
type CheckConfig struct {
	Timeout      time.Duration `json:"timeout"`
	UserAgent    string        `json:"user_agent"`
	MaxBodyBytes int64         `json:"max_body_bytes"`
	MaxRedirects int           `json:"max_redirects"`
}

// DefaultCheckConfig returns the settings used when nothing is configured
func DefaultCheckConfig() CheckConfig {
	return CheckConfig{
		Timeout:      DefaultCheckTimeout,
		UserAgent:    DefaultUserAgent,
		MaxBodyBytes: DefaultMaxBodyBytes,
		MaxRedirects: DefaultMaxRedirects,
	}
}
