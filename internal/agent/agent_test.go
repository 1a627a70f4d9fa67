package agent

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"gemstone-testapp/internal/config"
	"gemstone-testapp/internal/lockfile"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig() config.Config {
	return config.Config{
		ListenAddr:            "127.0.0.1:0",
		DaemonAPIURL:          "http://127.0.0.1:1/api/v1",
		FetchTimeout:          time.Second,
		WorkInterval:          10 * time.Millisecond,
		WorkSpinIterations:    10,
		WorkRetainProbability: 0.5,
		WorkChunkSize:         8,
		WorkBufferCap:         2,
		CrashInterval:         time.Hour,
		CrashProbability:      0,
		ShutdownTimeout:       2 * time.Second,
		AppVersion:            config.HardcodedVersion,
		LogLevel:              "info",
	}
}

func newTestAgent(t *testing.T, cfg config.Config, logger *slog.Logger) *Agent {
	t.Helper()
	a, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	a.notify = func(chan<- os.Signal) {}
	return a
}

func runAsync(ctx context.Context, a *Agent) <-chan ExitCause {
	done := make(chan ExitCause, 1)
	go func() { done <- a.Run(ctx) }()
	return done
}

func waitCause(t *testing.T, done <-chan ExitCause) ExitCause {
	t.Helper()
	select {
	case c := <-done:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return")
		return ExitFailure
	}
}

func TestExitCauseCodes(t *testing.T) {
	cases := []struct {
		cause ExitCause
		code  int
		name  string
	}{
		{ExitShutdown, 0, "shutdown"},
		{ExitSimulatedCrash, 1, "simulated_crash"},
		{ExitFailure, 1, "failure"},
	}
	for _, tc := range cases {
		if tc.cause.Code() != tc.code || tc.cause.String() != tc.name {
			t.Fatalf("%v: code=%d name=%q", tc.cause, tc.cause.Code(), tc.cause.String())
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.CrashProbability = 2
	if _, err := New(cfg, discardLogger()); err == nil {
		t.Fatal("expected config error")
	}
}

func TestBuildLoggerLevels(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = "warn"
	l := BuildLogger(cfg)
	if l.Enabled(context.Background(), slog.LevelInfo) || !l.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatal("warn logger level mismatch")
	}
	cfg.LogLevel = "debug"
	cfg.LogJSON = true
	if !BuildLogger(cfg).Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug logger should enable debug")
	}
}

func TestRunSimulatedCrash(t *testing.T) {
	cfg := testConfig()
	cfg.CrashProbability = 1
	logs := &syncBuffer{}
	a := newTestAgent(t, cfg, slog.New(slog.NewTextHandler(logs, nil)))

	cause := waitCause(t, runAsync(context.Background(), a))
	if cause != ExitSimulatedCrash || cause.Code() != 1 {
		t.Fatalf("cause = %v", cause)
	}
	out := logs.String()
	for _, want := range []string{"Gemstone test app started", "msg=PID pid=", "still running", "Simulating an error"} {
		if !strings.Contains(out, want) {
			t.Fatalf("logs missing %q:\n%s", want, out)
		}
	}
}

func TestRunSignalShutdown(t *testing.T) {
	logs := &syncBuffer{}
	a := newTestAgent(t, testConfig(), slog.New(slog.NewTextHandler(logs, nil)))

	subscribed := make(chan chan<- os.Signal, 1)
	a.notify = func(ch chan<- os.Signal) { subscribed <- ch }

	done := runAsync(context.Background(), a)
	select {
	case ch := <-subscribed:
		ch <- syscall.SIGTERM
	case <-time.After(2 * time.Second):
		t.Fatal("signal handler never installed")
	}

	if cause := waitCause(t, done); cause != ExitShutdown {
		t.Fatalf("cause = %v", cause)
	}
	if !strings.Contains(logs.String(), "Received signal, shutting down gracefully") {
		t.Fatalf("missing shutdown log:\n%s", logs.String())
	}
}

func TestRunSubscribesBeforeStarting(t *testing.T) {
	a := newTestAgent(t, testConfig(), discardLogger())

	var itersAtSubscribe uint64 = 1
	a.notify = func(ch chan<- os.Signal) {
		itersAtSubscribe = a.load.Stats().Iterations
		ch <- syscall.SIGTERM
	}

	if cause := waitCause(t, runAsync(context.Background(), a)); cause != ExitShutdown {
		t.Fatalf("cause = %v", cause)
	}
	if itersAtSubscribe != 0 {
		t.Fatalf("load loop ran %d iterations before signals were subscribed", itersAtSubscribe)
	}
}

func TestRunParentCancel(t *testing.T) {
	a := newTestAgent(t, testConfig(), discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, a)
	time.Sleep(50 * time.Millisecond)
	cancel()
	if cause := waitCause(t, done); cause != ExitShutdown {
		t.Fatalf("cause = %v", cause)
	}
}

func TestRunAlreadyRunning(t *testing.T) {
	cfg := testConfig()
	cfg.LockFile = filepath.Join(t.TempDir(), "testapp.lock")
	held, err := lockfile.Acquire(cfg.LockFile)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	defer held.Unlock()

	logs := &syncBuffer{}
	a := newTestAgent(t, cfg, slog.New(slog.NewTextHandler(logs, nil)))
	if cause := waitCause(t, runAsync(context.Background(), a)); cause != ExitShutdown {
		t.Fatalf("cause = %v", cause)
	}
	if !strings.Contains(logs.String(), "already running") {
		t.Fatalf("missing already running log:\n%s", logs.String())
	}
}

func TestRunWaitsForLock(t *testing.T) {
	cfg := testConfig()
	cfg.LockFile = filepath.Join(t.TempDir(), "testapp.lock")
	cfg.LockWait = 2 * time.Second
	held, err := lockfile.Acquire(cfg.LockFile)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = held.Unlock()
	}()

	logs := &syncBuffer{}
	a := newTestAgent(t, cfg, slog.New(slog.NewTextHandler(logs, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, a)

	deadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(logs.String(), "instance lock acquired") {
		if time.Now().After(deadline) {
			t.Fatalf("lock never acquired:\n%s", logs.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if cause := waitCause(t, done); cause != ExitShutdown {
		t.Fatalf("cause = %v", cause)
	}
	if strings.Contains(logs.String(), "already running") {
		t.Fatalf("should have waited for the lock:\n%s", logs.String())
	}
}

func TestRunProbeBindFailureIsFatal(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := testConfig()
	cfg.ProbeListenAddr = ln.Addr().String()
	a := newTestAgent(t, cfg, discardLogger())
	if cause := waitCause(t, runAsync(context.Background(), a)); cause != ExitFailure {
		t.Fatalf("cause = %v", cause)
	}
}

func TestProbeListenerBanner(t *testing.T) {
	a := newTestAgent(t, testConfig(), discardLogger())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serveProbe(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	_ = conn.Close()
	if err != nil || line != probeBanner {
		t.Fatalf("banner = %q, err = %v", line, err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serveProbe() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("probe listener did not stop")
	}
}

func TestGRPCHealthServingThenDraining(t *testing.T) {
	a := newTestAgent(t, testConfig(), discardLogger())
	lis := bufconn.Listen(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serveGRPCHealth(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc client: %v", err)
	}
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	callCtx, callCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer callCancel()

	var resp *healthpb.HealthCheckResponse
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err = client.Check(callCtx, &healthpb.HealthCheckRequest{Service: healthService})
		if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("health = %v, err = %v", resp.GetStatus(), err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serveGRPCHealth() = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("grpc health did not stop")
	}

	after, err := a.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: healthService})
	if err != nil {
		t.Fatalf("Check() after stop: %v", err)
	}
	if after.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status after stop = %v", after.GetStatus())
	}
}

func TestHeartbeatLogsIteration(t *testing.T) {
	logs := &syncBuffer{}
	a := newTestAgent(t, testConfig(), slog.New(slog.NewTextHandler(logs, nil)))
	a.heartbeat(7)
	out := logs.String()
	if !strings.Contains(out, "still running") || !strings.Contains(out, "iteration=7") || !strings.Contains(out, "vsz=") {
		t.Fatalf("heartbeat log = %q", out)
	}
}
