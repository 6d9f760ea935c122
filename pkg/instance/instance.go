package instance

import (
	"os"

	"github.com/Syntia28/nikos/pkg/env"
)

const fallbackID = "nikos-0"

// ID identifies this process in log lines and change-feed messages.
// An explicit NIKOS_INSTANCE_ID wins over platform-provided names.
func ID() string {
	if id := env.First("", "NIKOS_INSTANCE_ID", "DYNO", "K_REVISION"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
