// Package sysutil holds small process-level helpers used at startup.
package sysutil

import (
	"strings"

	"github.com/rs/zerolog"
)

// levelAliases maps accepted LOG_LEVEL spellings that zerolog does not parse
// itself.
var levelAliases = map[string]zerolog.Level{
	"warning": zerolog.WarnLevel,
	"":        zerolog.InfoLevel,
}

// SetLogLevel sets the global zerolog level from a LOG_LEVEL value and
// returns the level applied. Unknown or disabled values fall back to info.
func SetLogLevel(lvl string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(lvl))
	level, ok := levelAliases[name]
	if !ok {
		parsed, err := zerolog.ParseLevel(name)
		switch {
		case err != nil, parsed == zerolog.NoLevel, parsed == zerolog.Disabled:
			level = zerolog.InfoLevel
		default:
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
	return level
}

// IsTruthy reports whether an env flag such as SKIP_MIGRATIONS is switched
// on: "1", "true", "yes", "y" or "on", in any case.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

// FirstNonEmpty returns the first value that is not blank, unmodified.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
