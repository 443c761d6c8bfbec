package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"huntforge.ai/internal/config"
	"huntforge.ai/internal/hunt/service"
	persistlog "huntforge.ai/internal/persistence/log"
	"huntforge.ai/internal/persistence/r2s3"
	"huntforge.ai/internal/transport/httpmw"
	"huntforge.ai/internal/transport/mcp"
	"huntforge.ai/internal/transport/ws"
)

func main() {
	var (
		cfgPath  = flag.String("config", "./configs/huntforge.yaml", "config file (empty for defaults)")
		addr     = flag.String("addr", "", "http listen address (overrides config)")
		dataDir  = flag.String("data", "", "directory holding data.json and nameIdData.json (overrides config)")
		snapPath = flag.String("snapshot", "", "compiled index snapshot (overrides config)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)
	_ = godotenv.Load(".env")

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if v := strings.TrimSpace(*addr); v != "" {
		cfg.Addr = v
	}
	if v := strings.TrimSpace(*dataDir); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(*snapPath); v != "" {
		cfg.SnapshotPath = v
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	loaded, err := loadIndex(cfg, logger)
	if err != nil {
		logger.Fatalf("load index: %v", err)
	}
	st := loaded.ix.Stats()
	logger.Printf("index loaded from %s: coords=%d steps=%d names=%d dropped(steps=%d ids=%d names=%d)",
		loaded.info.Source, st.Coords, st.Steps, st.Names, st.DroppedSteps, st.DroppedIDs, st.DroppedNames)

	// Deferred first so it closes after the query log and still uploads the last file.
	mirror, err := openMirror(cfg.RuntimeDir, logger)
	if err != nil {
		logger.Fatalf("r2 mirror: %v", err)
	}
	defer mirror.Close()

	var loggers []service.QueryLogger
	if cfg.Logging.QueryLog {
		ql := persistlog.NewQueryLogger(cfg.RuntimeDir)
		if mirror != nil {
			ql.OnClose(func(path string) { mirror.Enqueue(path) })
		}
		defer ql.Close()
		loggers = append(loggers, ql)
		logger.Printf("query log: %s", ql.Pattern())
	}

	// Optional read-model index; serving never depends on it.
	idx, err := openRuntimeIndex(cfg.RuntimeDir, cfg.Logging.IndexBackend)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		loggers = append(loggers, idx)
	}

	svc := service.New(loaded.ix, service.Options{
		Info:    loaded.info,
		Loggers: loggers,
		Logger:  logger,
	})
	if idx != nil {
		if err := idx.UpsertCatalogs(svc.Info(), loaded.cats); err != nil {
			logger.Printf("index catalogs: %v", err)
		}
		if loaded.snapPath != "" {
			idx.RecordSnapshot(loaded.snapPath, loaded.header)
		}
	}

	wsOpts := ws.Options{
		MaxQueue:     cfg.WS.MaxQueue,
		ReadTimeout:  time.Duration(cfg.WS.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.WS.WriteTimeoutSec) * time.Second,
	}
	if cfg.Logging.SessionLog {
		sl := persistlog.NewSessionLogger(cfg.RuntimeDir)
		if mirror != nil {
			sl.OnClose(func(path string) { mirror.Enqueue(path) })
		}
		defer sl.Close()
		wsOpts.Audit = sl
	}
	wsSrv, err := ws.NewServer(svc, logger, wsOpts)
	if err != nil {
		logger.Fatalf("ws: %v", err)
	}

	limiter := httpmw.LimiterFromEnv()
	if limiter != nil {
		logger.Printf("rate limit: backend=%s", limiter.Name())
	}
	var mcpSrv *mcp.Server
	if envBool("HF_MCP_ENABLED", false) {
		secret := strings.TrimSpace(os.Getenv("HF_MCP_HMAC_SECRET"))
		mcpSrv, err = mcp.NewServer(mcp.Config{Service: svc, HMACSecret: secret, Logger: logger})
		if err != nil {
			logger.Fatalf("mcp: %v", err)
		}
		logger.Printf("mcp enabled at /v1/mcp hmac=%t", secret != "")
	}

	mux := buildMux(svc, wsSrv, muxOptions{
		EnablePprof: envBool("HF_ENABLE_PPROF_HTTP", false),
		Limiter:     limiter,
		MCP:         mcpSrv,
	}, logger)
	var handler http.Handler = mux
	if envBool("HF_ACCESS_LOG", false) {
		handler = httpmw.AccessLog(logger, map[string]bool{"/healthz": true, "/metrics": true}, mux)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()
	// Deferred closes run only after done, once in-flight requests drain.
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		if err := srv.Shutdown(ctx2); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}()

	logger.Printf("listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-done
}

// openMirror returns nil when HF_R2_ENDPOINT is unset.
func openMirror(runtimeDir string, logger *log.Logger) (*r2s3.Mirror, error) {
	client, err := r2s3.NewFromEnv()
	if err != nil || client == nil {
		return nil, err
	}
	prefix := strings.TrimSpace(os.Getenv("HF_R2_PREFIX"))
	if prefix == "" {
		prefix = "runtime"
	}
	logger.Printf("r2 mirror enabled prefix=%s", prefix)
	return r2s3.NewMirror(client, runtimeDir, r2s3.MirrorOptions{
		Prefix:      prefix,
		Workers:     2,
		EnqueueWait: 25 * time.Millisecond,
		Logger:      logger,
	}), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
