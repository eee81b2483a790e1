// Package daemon runs the brock server process: it loads configuration,
// opens the pokemon store, wires the battle engine client, strategies,
// prompts and notification channels into the HTTP app, and manages the
// pid/addr/lock files that make the process a well-behaved singleton.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dyc3/discord-pokemon-battles/internal/battleapi"
	"github.com/dyc3/discord-pokemon-battles/internal/config"
	"github.com/dyc3/discord-pokemon-battles/internal/coordinator"
	"github.com/dyc3/discord-pokemon-battles/internal/httpapi"
	"github.com/dyc3/discord-pokemon-battles/internal/notify"
	"github.com/dyc3/discord-pokemon-battles/internal/otel"
	"github.com/dyc3/discord-pokemon-battles/internal/prompt"
	"github.com/dyc3/discord-pokemon-battles/internal/store"
	"github.com/dyc3/discord-pokemon-battles/internal/store/postgres"
	"github.com/dyc3/discord-pokemon-battles/internal/store/sqlite"
	"github.com/dyc3/discord-pokemon-battles/internal/strategy"
)

var errNotRunning = errors.New("brock is not running")

func StartForeground(ctx context.Context, opts StartOptions) error {
	if opts.Home == "" {
		return errors.New("home is required")
	}

	// Ensure dirs exist.
	if err := os.MkdirAll(protectedDir(opts.Home), 0o755); err != nil {
		return err
	}

	// Acquire singleton lock (released on exit).
	lock, err := acquireLock(lockPath(opts.Home))
	if err != nil {
		return err
	}
	defer lock.release()

	// Optional pprof.
	startPprof(opts.PprofAddr)

	cfg, err := config.Load(opts.Home)
	if err != nil {
		return err
	}
	if opts.Port != 0 {
		cfg.Port = opts.Port
	}

	st, err := openStore(opts.Home, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	// Write PID + addr files.
	pid := os.Getpid()
	if err := os.WriteFile(pidPath(opts.Home), []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return err
	}
	addr := cfg.Addr()
	_ = os.WriteFile(addrPath(opts.Home), []byte(addr+"\n"), 0o644)
	defer func() {
		_ = os.Remove(pidPath(opts.Home))
		_ = os.Remove(addrPath(opts.Home))
	}()

	// Early port check for clearer error.
	if err := checkPortAvailable(addr); err != nil {
		return err
	}

	engine := battleapi.New(cfg.BattleAPIBaseURL)

	strategies := strategy.NewRegistry()
	if err := strategy.LoadLuaDir(strategies, cfg.StrategiesDir); err != nil {
		return err
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		fn, err := strategy.NewGemini(ctx, key)
		if err != nil {
			slog.Warn("gemini strategy unavailable", "err", err)
		} else {
			strategies.Register("gemini", fn)
		}
	}

	prompts := prompt.New()
	prompts.Timeout = cfg.PromptTimeout

	channel := buildChannel(cfg)
	battles := coordinator.NewRegistry()

	srvOpts := httpapi.ServerOptions{
		Addr:       addr,
		APIKey:     cfg.APIKey,
		Dev:        opts.Dev,
		Engine:     engine,
		Store:      st,
		Strategies: strategies,
		Prompts:    prompts,
		Battles:    battles,
		Channel:    channel,
		BotDelay:   cfg.BotDelay,
	}
	if opts.EnableOtel {
		metricsHandler, err := otel.InitMeterProvider(ctx, "brock")
		if err != nil {
			slog.Warn("otel init failed, using fallback metrics", "err", err)
		} else {
			srvOpts.MetricsHandler = metricsHandler
			srvOpts.UseOtelHTTP = true
			_ = otel.InitMetrics(ctx, func() int64 {
				return int64(battles.Len())
			})
		}
	}

	app, err := httpapi.NewApp(srvOpts)
	if err != nil {
		return err
	}

	slog.Info("daemon starting", "addr", addr, "home", opts.Home, "engine", cfg.BattleAPIBaseURL)
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = app.Server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// openStore dispatches on the configured driver. SQLite lives under the home
// directory; postgres needs a connection string.
func openStore(home string, cfg config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case "", "sqlite":
		return sqlite.Open(home)
	case "postgres":
		if cfg.DBURL == "" {
			return nil, errors.New("db_driver is postgres but no db_url or DATABASE_URL is set")
		}
		return postgres.Open(cfg.DBURL)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
}

// buildChannel assembles the commentary fan-out. The log channel is always
// present so battles stay observable without a webhook.
func buildChannel(cfg config.Config) notify.Channel {
	reg := notify.NewRegistry()
	reg.Add(notify.Log{})
	if cfg.WebhookURL != "" {
		reg.Add(&notify.Webhook{URL: cfg.WebhookURL, Username: cfg.WebhookUsername})
	}
	return reg
}

func StartBackground(ctx context.Context, opts StartOptions) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}

	// Ensure dirs exist before starting.
	if err := os.MkdirAll(protectedDir(opts.Home), 0o755); err != nil {
		return 0, err
	}

	// Best-effort: refuse to start if already running.
	if st, _ := Status(ctx, opts.Home); st.Running {
		return 0, fmt.Errorf("brock already running (pid %d)", st.PID)
	}

	logFile := filepath.Join(protectedDir(opts.Home), "daemon.log")
	stderr, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	// Kept open for child lifetime; closing here may break writes on some platforms.

	args := []string{"daemon", "--home", opts.Home}
	if opts.Port != 0 {
		args = append(args, "--port", strconv.Itoa(opts.Port))
	}
	if opts.Dev {
		args = append(args, "--dev")
	}
	if opts.PprofAddr != "" {
		args = append(args, "--pprof", opts.PprofAddr)
	}
	if opts.EnableOtel {
		args = append(args, "--otel")
	}

	cmd := exec.Command(exe, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	setDaemonSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	// Wait briefly for pid file to appear or process to die.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, _ := Status(ctx, opts.Home); st.Running {
			return st.PID, nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	// Fallback to started pid even if status isn't ready yet.
	return cmd.Process.Pid, nil
}

func Stop(ctx context.Context, home string) (bool, error) {
	st, err := Status(ctx, home)
	if err != nil {
		return false, err
	}
	if !st.Running {
		return false, nil
	}

	proc, err := os.FindProcess(st.PID)
	if err != nil {
		// On unix FindProcess always succeeds; keep this for completeness.
		return false, errNotRunning
	}
	if err := signalTerm(proc); err != nil {
		return false, err
	}

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if st2, _ := Status(ctx, home); !st2.Running {
			return true, nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	_ = proc.Kill()
	return true, nil
}

func Status(ctx context.Context, home string) (StatusInfo, error) {
	pb, err := os.ReadFile(pidPath(home))
	if err != nil {
		return StatusInfo{Running: false}, nil
	}
	pidStr := strings.TrimSpace(string(pb))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return StatusInfo{Running: false}, nil
	}

	if !processExists(pid) {
		_ = os.Remove(pidPath(home))
		return StatusInfo{Running: false}, nil
	}

	addr := ""
	if ab, err := os.ReadFile(addrPath(home)); err == nil {
		addr = strings.TrimSpace(string(ab))
	}
	if addr == "" {
		addr = "unknown"
	}
	return StatusInfo{Running: true, PID: pid, Addr: addr}, nil
}

func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use", addr)
	}
	_ = ln.Close()
	return nil
}
