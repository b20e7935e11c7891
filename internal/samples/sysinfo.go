package samples

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/scylladb/termtables"
	"github.com/shirou/gopsutil/v4/host"

	"github.com/snadboy/homelab-scripts/internal/util"
)

// EnvVars are shown by the system report.
var EnvVars = []string{"HOME", "USER", "PATH", "GOPATH", "GOROOT", "TZ"}

type SystemInfo struct {
	Platform        string
	PlatformRelease string
	PlatformVersion string
	Architecture    string
	Hostname        string
	GoVersion       string
	Compiler        string
	BootTime        time.Time
}

func CollectSystemInfo(ctx context.Context) (*SystemInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read host info: %w", err)
	}
	version := info.Platform
	if info.PlatformVersion != "" {
		version += " " + info.PlatformVersion
	}
	return &SystemInfo{
		Platform:        info.OS,
		PlatformRelease: info.KernelVersion,
		PlatformVersion: version,
		Architecture:    info.KernelArch,
		Hostname:        info.Hostname,
		GoVersion:       runtime.Version(),
		Compiler:        runtime.Compiler,
		BootTime:        time.Unix(int64(info.BootTime), 0),
	}, nil
}

func PrintSystemInfo(w io.Writer, info *SystemInfo, now time.Time) {
	header := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("System Information Report"),
		dim.Render("Generated: "+now.Format("2006-01-02 15:04:05")),
	)
	fmt.Fprintln(w, panelStyle.Render(header))
	fmt.Fprintln(w)

	fmt.Fprintln(w, titleStyle.Render("System Details"))
	details := termtables.CreateTable()
	details.AddHeaders("Property", "Value")
	details.AddRow("Platform", info.Platform)
	details.AddRow("Platform Release", info.PlatformRelease)
	details.AddRow("Platform Version", util.Truncate(info.PlatformVersion, 50))
	details.AddRow("Architecture", info.Architecture)
	details.AddRow("Hostname", info.Hostname)
	details.AddRow("Go Version", info.GoVersion)
	details.AddRow("Compiler", info.Compiler)
	if !info.BootTime.IsZero() && info.BootTime.Unix() > 0 {
		details.AddRow("Booted", humanize.RelTime(info.BootTime, now, "ago", "from now"))
	}
	fmt.Fprintln(w, details.Render())

	fmt.Fprintln(w, titleStyle.Render("Key Environment Variables"))
	env := termtables.CreateTable()
	env.AddHeaders("Variable", "Value")
	for _, name := range EnvVars {
		value, ok := os.LookupEnv(name)
		if !ok {
			value = "[not set]"
		}
		env.AddRow(name, util.Truncate(value, 60))
	}
	fmt.Fprintln(w, env.Render())
	fmt.Fprintln(w)

	success.Fprintln(w, "Script completed successfully!")
}
