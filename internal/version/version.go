package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const driverModule = "go.mongodb.org/mongo-driver"

// Set at build time:
//
//	go build -ldflags "-X github.com/studiowebux/mongobar/internal/version.Version=0.3.0"
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Info describes the running binary
type Info struct {
	Version   string
	Commit    string
	Date      string
	GoVersion string
	Driver    string
	Platform  string
}

// Get collects build information, falling back to the module's VCS stamp
// when no commit was injected
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	build, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, dep := range build.Deps {
		if dep.Path == driverModule {
			info.Driver = dep.Version
		}
	}
	for _, setting := range build.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = setting.Value
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = setting.Value
			}
		}
	}
	return info
}

// Short returns the version with an abbreviated commit
func (i Info) Short() string {
	if i.Commit == "" {
		return i.Version
	}
	commit := i.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return i.Version + "+" + commit
}

// String renders the multi-line output of the version command
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mongobar %s\n", i.Short())
	if i.Date != "" {
		fmt.Fprintf(&b, "  built:  %s\n", i.Date)
	}
	fmt.Fprintf(&b, "  go:     %s %s\n", i.GoVersion, i.Platform)
	if i.Driver != "" {
		fmt.Fprintf(&b, "  driver: mongo-driver %s\n", i.Driver)
	}
	return b.String()
}
