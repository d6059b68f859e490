package version

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fatih/color"
)

// Set at link time with -ldflags "-X kalmap/internal/version.Version=...".
var (
	Version   = "0.1.0-dev"
	GitCommit = ""
	BuildDate = ""
)

// Info is the build description the version command prints.
type Info struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	Go        string `json:"go"`
	Platform  string `json:"platform"`
}

// Current collects Info from the link-time variables and the runtime.
func Current() Info {
	info := Info{
		Tool:      "kalmap",
		Version:   strings.TrimSpace(Version),
		GitCommit: strings.TrimSpace(GitCommit),
		BuildDate: strings.TrimSpace(BuildDate),
		Go:        runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	return info
}

// Colored paints major, minor and patch of Version; anything after
// the patch number stays plain.
func Colored(enabled bool) string {
	var major, minor, patch int
	var rest string
	if n, _ := fmt.Sscanf(Version, "%d.%d.%d%s", &major, &minor, &patch, &rest); n < 3 || !enabled {
		return Version
	}
	part := func(v int, fg color.Attribute) string {
		c := color.New(fg, color.Bold)
		c.EnableColor()
		return c.Sprint(v)
	}
	return fmt.Sprintf("%s.%s.%s%s", part(major, color.FgYellow), part(minor, color.FgGreen), part(patch, color.FgBlue), rest)
}

// String is the one-line form: tool, version, optional commit and
// date, toolchain and platform.
func String(colored bool) string {
	info := Current()
	parts := []string{info.Tool, Colored(colored)}
	if info.GitCommit != "" {
		parts = append(parts, "("+info.GitCommit+")")
	}
	if info.BuildDate != "" {
		parts = append(parts, "built "+info.BuildDate)
	}
	return strings.Join(append(parts, info.Go, info.Platform), " ")
}
