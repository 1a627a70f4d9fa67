package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envPrefix        = "GEMSTONE_TESTAPP_"
	HardcodedVersion = "V0.3"
)

type Config struct {
	ListenAddr            string
	DaemonAPIURL          string
	FetchTimeout          time.Duration
	WorkInterval          time.Duration
	WorkSpinIterations    int
	WorkRetainProbability float64
	WorkChunkSize         int
	WorkBufferCap         int
	CrashInterval         time.Duration
	CrashProbability      float64
	ShutdownTimeout       time.Duration
	ProbeListenAddr       string
	GRPCHealthAddr        string
	MetricsAddr           string
	LockFile              string
	LockWait              time.Duration
	AppVersion            string
	LogJSON               bool
	LogLevel              string
}

func Load() (Config, error) {
	cfg := Config{
		ListenAddr:            env("LISTEN_ADDR", "localhost:8080"),
		DaemonAPIURL:          strings.TrimRight(env("DAEMON_API_URL", "http://127.0.0.1:9876/api/v1"), "/"),
		FetchTimeout:          envDuration("FETCH_TIMEOUT", 5*time.Second),
		WorkInterval:          envDuration("WORK_INTERVAL", 1*time.Second),
		WorkSpinIterations:    envInt("WORK_SPIN_ITERATIONS", 10000),
		WorkRetainProbability: envFloat("WORK_RETAIN_PROBABILITY", 0.1),
		WorkChunkSize:         envInt("WORK_CHUNK_SIZE", 1000),
		WorkBufferCap:         envInt("WORK_BUFFER_CAP", 10),
		CrashInterval:         envDuration("CRASH_INTERVAL", 10*time.Second),
		CrashProbability:      envFloat("CRASH_PROBABILITY", 0.05),
		ShutdownTimeout:       envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		ProbeListenAddr:       env("PROBE_ADDR", ""),
		GRPCHealthAddr:        env("GRPC_HEALTH_ADDR", ""),
		MetricsAddr:           env("METRICS_ADDR", ""),
		LockFile:              env("LOCK_FILE", ""),
		LockWait:              envDuration("LOCK_WAIT", 0),
		AppVersion:            HardcodedVersion,
		LogJSON:               envBool("LOG_JSON", false),
		LogLevel:              strings.ToLower(env("LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New(envPrefix + "LISTEN_ADDR is required")
	}
	u, err := url.Parse(c.DaemonAPIURL)
	if err != nil {
		return fmt.Errorf("parse %sDAEMON_API_URL: %w", envPrefix, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported daemon api scheme %q", u.Scheme)
	}
	if c.FetchTimeout <= 0 {
		return errors.New(envPrefix + "FETCH_TIMEOUT must be > 0")
	}
	if c.WorkInterval <= 0 || c.CrashInterval <= 0 {
		return errors.New("loop intervals must be > 0")
	}
	if c.WorkSpinIterations < 0 || c.WorkChunkSize < 0 {
		return errors.New("work sizes must be >= 0")
	}
	if c.WorkBufferCap <= 0 {
		return errors.New(envPrefix + "WORK_BUFFER_CAP must be > 0")
	}
	if !isProbability(c.WorkRetainProbability) {
		return fmt.Errorf("%sWORK_RETAIN_PROBABILITY out of range: %v", envPrefix, c.WorkRetainProbability)
	}
	if !isProbability(c.CrashProbability) {
		return fmt.Errorf("%sCRASH_PROBABILITY out of range: %v", envPrefix, c.CrashProbability)
	}
	if c.LockWait < 0 {
		return errors.New(envPrefix + "LOCK_WAIT must be >= 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New(envPrefix + "SHUTDOWN_TIMEOUT must be > 0")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.LogLevel)
	}
	return nil
}

func isProbability(p float64) bool {
	return p >= 0 && p <= 1
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := env(key, "")
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envFloat(key string, fallback float64) float64 {
	v := env(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := strings.ToLower(env(key, ""))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := env(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
