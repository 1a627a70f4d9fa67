package report

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gemstone-testapp/internal/model"
)

const (
	Banner = "Hello from Gemstone test app!"

	daemonSection    = "--- Gemstone Daemon Info ---"
	processesSection = "--- Managed Processes ---"

	SystemUnavailable    = "Unable to fetch system info from API"
	ProcessesUnavailable = "Unable to fetch processes from API"
	NoProcesses          = "No processes currently managed"
)

// Report is everything one status page shows. A nil payload or a non-nil
// error marks the corresponding section as unavailable.
type Report struct {
	PID    int
	Uptime time.Duration

	System    *model.SystemPayload
	SystemErr error

	Processes    []model.ProcessRecord
	ProcessesErr error
}

// Render writes the plain-text status page. It never fails on payload
// content; only write errors from w are returned.
func Render(w io.Writer, r Report, logger *slog.Logger) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, Banner)
	fmt.Fprintf(bw, "PID: %d\n", r.PID)
	fmt.Fprintf(bw, "Uptime: %.1fs\n", r.Uptime.Seconds())

	fmt.Fprintf(bw, "\n%s\n", daemonSection)
	if r.SystemErr != nil || r.System == nil {
		fmt.Fprintln(bw, SystemUnavailable)
	} else {
		writeSystem(bw, r.System, logger)
	}

	fmt.Fprintf(bw, "\n%s\n", processesSection)
	switch {
	case r.ProcessesErr != nil || r.Processes == nil:
		fmt.Fprintln(bw, ProcessesUnavailable)
	case len(r.Processes) == 0:
		fmt.Fprintln(bw, NoProcesses)
	default:
		for _, p := range r.Processes {
			fmt.Fprintf(bw, "ID: %s, Name: %s, Status: %s\n", p.DisplayID(), p.DisplayName(), p.DisplayStatus())
		}
	}

	return bw.Flush()
}

func writeSystem(w io.Writer, p *model.SystemPayload, logger *slog.Logger) {
	fmt.Fprintf(w, "Version: %s\n", p.DisplayVersion())
	fmt.Fprintf(w, "Process Count: %d\n", p.ProcessCount)

	s := p.SystemStats
	if s == nil {
		return
	}
	fmt.Fprintf(w, "CPU Usage (system): %.1f%%\n", s.CPUPercent)
	fmt.Fprintf(w, "Memory Usage: %s / %s\n", FormatBytes(s.MemoryUsed), FormatBytes(s.MemoryTotal))
	fmt.Fprintf(w, "Disk Usage: %s / %s (%.1f%%)\n", FormatBytes(s.DiskUsed), FormatBytes(s.DiskTotal), s.DiskPercent)
	if len(s.LoadAverage) >= 3 {
		fmt.Fprintf(w, "Load Average: %.2f, %.2f, %.2f\n", s.LoadAverage[0], s.LoadAverage[1], s.LoadAverage[2])
	}
	fmt.Fprintf(w, "System Uptime: %s\n", FormatUptime(s.Uptime))

	if s.Timestamp == "" {
		return
	}
	ts, err := FormatTimestamp(s.Timestamp)
	if err != nil && logger != nil {
		logger.Warn("failed to parse timestamp", "timestamp", s.Timestamp, "error", err)
	}
	fmt.Fprintf(w, "Last Updated: %s\n", ts)
}
