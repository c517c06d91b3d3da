package types

import "fmt"

// ConfigError reports an invalid grid level or strategy setting. It is only
// produced while loading configuration, never while processing ticks.
type ConfigError struct {
	Level  int
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Level != 0 {
		return fmt.Sprintf("config error: level %d: %s: %s", e.Level, e.Field, e.Reason)
	}
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}
