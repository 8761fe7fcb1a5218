package logging

import (
	"fmt"
	"strings"
)

var severityNames = map[Severity]string{
	SeverityDebug: "debug",
	SeverityInfo:  "info",
	SeverityWarn:  "warn",
	SeverityError: "error",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the severity by name for the JSON sink.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseSeverity accepts the names printed by String, case-insensitively.
// "warning" is accepted as an alias for warn.
func ParseSeverity(value string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return SeverityDebug, nil
	case "info", "":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarn, nil
	case "error":
		return SeverityError, nil
	default:
		return SeverityInfo, fmt.Errorf("unknown severity %q", value)
	}
}
