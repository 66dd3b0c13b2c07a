package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is set at build time.
	Version = "0.1.0"
	// GitCommit is set at build time.
	GitCommit = "unknown"
	// BuildDate is set at build time.
	BuildDate = "unknown"
)

// Info holds build identification.
type Info struct {
	Version   string
	GitCommit string
	BuildDate string
	GoVersion string
	Platform  string
}

// Get returns the running binary's build info.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("quarry version %s (%s %s)", i.Version, i.Platform, i.GoVersion)
}

// FullString includes build metadata.
func (i Info) FullString() string {
	return fmt.Sprintf(`quarry version %s
Git Commit: %s
Build Date: %s
Platform: %s
Go Version: %s`, i.Version, i.GitCommit, i.BuildDate, i.Platform, i.GoVersion)
}
