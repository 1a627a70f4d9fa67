package system

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const selfStatusPath = "/proc/self/status"

// ProcessUsage is the resident footprint of one process as the kernel reports
// it in /proc/<pid>/status.
type ProcessUsage struct {
	RSSBytes    uint64
	VMSizeBytes uint64
	Threads     uint64
}

func ReadSelfUsage() (ProcessUsage, error) {
	return ReadProcessUsage(selfStatusPath)
}

func ReadProcessUsage(path string) (ProcessUsage, error) {
	f, err := os.Open(path)
	if err != nil {
		return ProcessUsage{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	u, err := parseProcessStatus(f)
	if err != nil {
		return ProcessUsage{}, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}

func parseProcessStatus(r io.Reader) (ProcessUsage, error) {
	vals := map[string]uint64{}
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		key, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		parts := strings.Fields(rest)
		if len(parts) == 0 {
			continue
		}
		v, convErr := strconv.ParseUint(parts[0], 10, 64)
		if convErr != nil {
			continue
		}
		if len(parts) > 1 && strings.EqualFold(parts[1], "kB") {
			v *= 1024
		}
		vals[key] = v
	}
	if err := s.Err(); err != nil {
		return ProcessUsage{}, fmt.Errorf("scan status: %w", err)
	}
	rss, ok := vals["VmRSS"]
	if !ok {
		return ProcessUsage{}, fmt.Errorf("VmRSS missing")
	}
	return ProcessUsage{
		RSSBytes:    rss,
		VMSizeBytes: vals["VmSize"],
		Threads:     vals["Threads"],
	}, nil
}
