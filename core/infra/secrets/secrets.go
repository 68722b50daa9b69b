// Package secrets reports on per-client API keys without exposing them.
package secrets

import (
	"os"
	"strings"
)

// KeyStatus describes whether a client's API key env var is usable.
type KeyStatus string

const (
	KeyUnset   KeyStatus = ""
	KeyPresent KeyStatus = "present"
	KeyMissing KeyStatus = "missing"
)

// Status looks up envVar. An empty name means the client uses the shared key.
func Status(envVar string) KeyStatus {
	envVar = strings.TrimSpace(envVar)
	if envVar == "" {
		return KeyUnset
	}
	if v, ok := os.LookupEnv(envVar); ok && strings.TrimSpace(v) != "" {
		return KeyPresent
	}
	return KeyMissing
}
