package logging

import (
	"fmt"
	"time"
)

// Sink names accepted in Config.EnabledSinks.
const (
	SinkConsole = "console"
	SinkJSON    = "json"
)

type Config struct {
	EnabledSinks    []string
	BufferSize      int
	MinimumSeverity Severity
	// CategorySeverity overrides MinimumSeverity for individual event
	// categories, so chatty geometry traces can be enabled on their own.
	CategorySeverity map[string]Severity
	JSON             JSONConfig
	Console          ConsoleConfig
	DropWarnInterval time.Duration
}

type JSONConfig struct {
	// FilePath is appended to; empty writes to the console stream.
	FilePath      string
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	Prefix string
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{SinkConsole},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
	}
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

// Threshold returns the minimum severity forwarded for category.
func (c Config) Threshold(category string) Severity {
	if s, ok := c.CategorySeverity[category]; ok {
		return s
	}
	return c.MinimumSeverity
}

// ParseCategorySeverity converts a category to severity-name map.
func ParseCategorySeverity(raw map[string]string) (map[string]Severity, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]Severity, len(raw))
	for category, name := range raw {
		s, err := ParseSeverity(name)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}
		out[category] = s
	}
	return out, nil
}
