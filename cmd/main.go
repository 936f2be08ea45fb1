package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"spa-chat-widget/handler"
	"spa-chat-widget/internal/connectivity"
	"spa-chat-widget/internal/integrations/paramstore"
	"spa-chat-widget/internal/integrations/spaapi"
	"spa-chat-widget/internal/offline"
	"spa-chat-widget/internal/session"
	"spa-chat-widget/internal/transcript"
	"spa-chat-widget/internal/widget"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	apiURL := mustEnv("SPA_API_URL")
	paramPrefix := os.Getenv("PARAM_PREFIX")
	sessionTable := os.Getenv("SESSION_TABLE")
	spaID := os.Getenv("SPA_ID")
	historyLimit := envInt("HISTORY_LIMIT", 20)
	maxRetries := envInt("MAX_RETRIES", offline.DefaultMaxRetries)
	drainDelay := envDuration("DRAIN_DELAY", offline.DefaultDelay)
	probeInterval := envDuration("PROBE_INTERVAL", 5*time.Second)
	window := transcript.Window{
		EstimatedItemHeight: envFloat("ROW_HEIGHT", transcript.DefaultWindow.EstimatedItemHeight),
		ViewportHeight:      envFloat("VIEWPORT_HEIGHT", transcript.DefaultWindow.ViewportHeight),
		Overscan:            envInt("OVERSCAN", transcript.DefaultWindow.Overscan),
	}

	// ---- AWS-backed settings and session storage (optional) ----
	var clientOpts []spaapi.Option
	var sessions session.Store
	if paramPrefix != "" || sessionTable != "" {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		if paramPrefix != "" {
			params, err := paramstore.New(awsssm.NewFromConfig(cfg), paramPrefix)
			if err != nil {
				slog.Error("failed to create SSM client", "err", err)
				os.Exit(1)
			}
			clientOpts = append(clientOpts, spaapi.WithTokenParameter(params, "api-token"))
			if spaID == "" {
				v, found, err := params.Lookup(ctx, "spa_id")
				if err != nil {
					slog.Error("failed to load spa id", "err", err)
					os.Exit(1)
				}
				if found {
					spaID = v
				}
			}
		}
		if sessionTable != "" {
			clientID := envString("CLIENT_ID", hostname())
			sessions, err = session.NewDynamoStore(awsdynamodb.NewFromConfig(cfg), sessionTable, clientID)
			if err != nil {
				slog.Error("failed to create session store", "err", err)
				os.Exit(1)
			}
		}
	}
	if sessions == nil {
		fileStore, err := session.NewFileStore(envString("SESSION_FILE", defaultSessionFile()))
		if err != nil {
			slog.Error("failed to create session store", "err", err)
			os.Exit(1)
		}
		sessions = fileStore
	}

	// ---- Clients ----
	client, err := spaapi.NewClient(apiURL, clientOpts...)
	if err != nil {
		slog.Error("failed to create spa API client", "err", err)
		os.Exit(1)
	}
	sessionID, err := session.Resolve(ctx, sessions)
	if err != nil {
		slog.Error("failed to resolve session id", "err", err)
		os.Exit(1)
	}

	// ---- Widget ----
	sig := connectivity.NewSignal(true)
	w, err := widget.New(client, sig, widget.Config{
		SpaID:        spaID,
		SessionID:    sessionID,
		HistoryLimit: historyLimit,
		Window:       window,
	},
		widget.WithLogger(logger),
		widget.WithSessionSaver(sessions),
		widget.WithQueueOptions(offline.WithMaxRetries(maxRetries), offline.WithDelay(drainDelay)),
	)
	if err != nil {
		slog.Error("failed to create widget", "err", err)
		os.Exit(1)
	}
	defer w.Close()

	h, err := handler.NewHandler(w, w.Booking(), sig)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	if probeInterval > 0 {
		prober, err := connectivity.NewProber(sig, client, probeInterval, logger)
		if err != nil {
			slog.Error("failed to create prober", "err", err)
			os.Exit(1)
		}
		g.Go(func() error { return prober.Run(gctx) })
	}
	g.Go(func() error {
		defer cancel()
		return runConsole(gctx, h, os.Stdin, os.Stdout)
	})
	if err := g.Wait(); err != nil {
		slog.Error("widget stopped", "err", err)
		os.Exit(1)
	}
}

// runConsole feeds input lines to h until /quit, end of input or ctx is done.
func runConsole(ctx context.Context, h *handler.Handler, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	resp, err := h.Handle(ctx, "")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, resp.Output)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			resp, err := h.Handle(ctx, line)
			if err != nil {
				return err
			}
			if resp.Quit {
				return nil
			}
			fmt.Fprintln(out, resp.Output)
			fmt.Fprint(out, "> ")
		}
	}
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "spa-chat-widget", "storage.json")
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "local"
	}
	return h
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// envDuration accepts Go durations ("1s") or whole seconds ("1").
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(n) * time.Second
}
