// Package version reports build information for the smartem binary.
package version

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/d-j-hatton/python-smartem/db"
)

// Set at build time via -ldflags "-X github.com/d-j-hatton/python-smartem/version.Version=...".
var (
	CommitHash = "dev"
	BuildTime  = "unknown"
	Version    = "dev"
)

// Info contains version and build information
type Info struct {
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	Version    string `json:"version"`
	Schema     string `json:"schema"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the current version information
func Get() Info {
	return Info{
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		Version:    Version,
		Schema:     SchemaVersion(),
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// SchemaVersion is the newest migration compiled into the binary.
func SchemaVersion() string {
	files, err := db.Migrations(db.SQLite)
	if err != nil || len(files) == 0 {
		return "none"
	}
	return strings.Split(files[len(files)-1], "_")[0]
}

func (i Info) String() string {
	return fmt.Sprintf("smartem %s (commit %s, built %s, schema %s)", i.Version, i.Short(), i.BuildTime, i.Schema)
}

// Short returns the abbreviated commit hash
func (i Info) Short() string {
	if len(i.CommitHash) >= 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}
