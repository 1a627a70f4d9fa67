package model

// SystemPayload is the data of GET /api/v1/system.
type SystemPayload struct {
	Version      string       `json:"version"`
	Uptime       int64        `json:"uptime,omitempty"`
	StartedAt    string       `json:"started_at,omitempty"`
	ProcessCount int          `json:"process_count"`
	SystemStats  *SystemStats `json:"system_stats,omitempty"`
}

// SystemStats mirrors the daemon's host-wide sample. Every field is optional on
// the wire; absent values stay zero.
type SystemStats struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryTotal   uint64    `json:"memory_total"`
	MemoryUsed    uint64    `json:"memory_used"`
	MemoryPercent float64   `json:"memory_percent,omitempty"`
	DiskTotal     uint64    `json:"disk_total"`
	DiskUsed      uint64    `json:"disk_used"`
	DiskPercent   float64   `json:"disk_percent"`
	LoadAverage   []float64 `json:"load_average,omitempty"`
	Uptime        uint64    `json:"uptime"`
	Timestamp     string    `json:"timestamp"`
}

func (p SystemPayload) DisplayVersion() string { return orUnknown(p.Version) }
