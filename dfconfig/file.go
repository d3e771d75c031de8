package dfconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Raw is the on-disk shape consumed by cmd/dapperforge; application code
// turns it into a Config by supplying a ConnectionFactory and Dialect built
// from DSN/DialectName.
type Raw struct {
	DialectName           string `yaml:"dialect"`
	DSN                   string `yaml:"dsn"`
	CommandTimeoutSeconds int    `yaml:"commandTimeoutSeconds"`
	MaxRetryCount         int    `yaml:"maxRetryCount"`
	BaseRetryDelayMillis  int    `yaml:"baseRetryDelayMillis"`
	LogLevel              string `yaml:"logLevel"`
}

// LoadFile reads a YAML configuration file into Raw.
func LoadFile(path string) (*Raw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dfconfig: read %s: %w", path, err)
	}
	var raw Raw
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("dfconfig: parse %s: %w", path, err)
	}
	return &raw, nil
}

// BaseRetryDelay converts the millisecond field to a time.Duration.
func (r Raw) BaseRetryDelay() time.Duration {
	return time.Duration(r.BaseRetryDelayMillis) * time.Millisecond
}
