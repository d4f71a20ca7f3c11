package nebula

import (
	"time"

	s "github.com/prataprc/gosettings"
)

// Settings is the teacher's own configuration type (github.com/prataprc/
// gosettings): a map[string]interface{} with typed fluent getters. The
// options below are exactly spec.md §6's configuration surface, plus the
// ambient additions a complete driver carries (buffersize, an optional
// queue_bound, compression, and log.level).
type Settings = s.Settings

// DefaultSettings returns the configuration surface spec.md §6
// enumerates, seeded with values a production client would ship.
func DefaultSettings() Settings {
	return s.Settings{
		"port":             9042,
		"receive_timeout":  12000, // ms
		"send_timeout":     12000, // ms
		"keepalive":        true,
		"keepalive_time":   60000, // ms
		"cql_version":      "3.0.0",
		"user":             "",
		"password":         "",
		"buffersize":       4096,
		"queue_bound":      0, // 0 == no Overloaded bound (4096-deep queue, enqueue blocks when full); >0 is spec.md §4.4's local policy extension
		"compression":      "",
		"log.level":        "info",
	}
}

// config is the parsed, typed view of Settings a Connection actually
// consumes. parseConfig never fails: missing or mistyped values fall back
// to defaults, and the one Open-time configuration error spec.md's error
// taxonomy names (missing credentials under a server-mandated
// AUTHENTICATE) is raised by connection.go's handshake, not here.
type config struct {
	port            int
	receiveTimeout  time.Duration
	sendTimeout     time.Duration
	keepalive       bool
	keepaliveTime   time.Duration
	cqlVersion      string
	user            string
	password        string
	bufferSize      int
	queueBound      int
	compressionName string
}

// settingsInt64/settingsBool read a raw value out of the underlying map
// directly rather than trusting a specific typed-getter method name on
// gosettings.Settings beyond the String/Uint64 pair the teacher's own
// transport.go exercises; Settings is, at base, a plain
// map[string]interface{}, so a type switch is always safe here.
func settingsInt64(setts Settings, key string, def int64) int64 {
	switch v := setts[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case uint64:
		return int64(v)
	default:
		return def
	}
}

func settingsBool(setts Settings, key string, def bool) bool {
	if v, ok := setts[key].(bool); ok {
		return v
	}
	return def
}

func parseConfig(setts Settings) config {
	return config{
		port:            int(settingsInt64(setts, "port", 9042)),
		receiveTimeout:  time.Duration(settingsInt64(setts, "receive_timeout", 12000)) * time.Millisecond,
		sendTimeout:     time.Duration(settingsInt64(setts, "send_timeout", 12000)) * time.Millisecond,
		keepalive:       settingsBool(setts, "keepalive", true),
		keepaliveTime:   time.Duration(settingsInt64(setts, "keepalive_time", 60000)) * time.Millisecond,
		cqlVersion:      setts.String("cql_version"),
		user:            setts.String("user"),
		password:        setts.String("password"),
		bufferSize:      int(settingsInt64(setts, "buffersize", 4096)),
		queueBound:      int(settingsInt64(setts, "queue_bound", 0)),
		compressionName: setts.String("compression"),
	}
}

func (c config) hasCredentials() bool {
	return c.user != "" || c.password != ""
}
