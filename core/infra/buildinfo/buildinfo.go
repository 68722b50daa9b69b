package buildinfo

import (
	"fmt"
	"runtime"

	"github.com/docintake/docintake/core/infra/logging"
)

// Set at link time with -ldflags "-X .../buildinfo.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info returns a single-line build summary.
func Info() string {
	return fmt.Sprintf("version=%s commit=%s date=%s go=%s", Version, Commit, Date, runtime.Version())
}

// Log writes the build summary under the binary's component name.
func Log(binary string) {
	logging.Info(binary, "build", "version", Version, "commit", Commit, "date", Date, "go", runtime.Version())
}
