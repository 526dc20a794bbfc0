package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eventengine.ai/internal/catalogs"
	"eventengine.ai/internal/engine"
	"eventengine.ai/internal/engine/clock"
	"eventengine.ai/internal/engine/driver"
	"eventengine.ai/internal/events/arena"
	"eventengine.ai/internal/messages"
	persistlog "eventengine.ai/internal/persistence/log"
	"eventengine.ai/internal/transport/ws"
	"eventengine.ai/internal/tuning"
)

// Event kinds this build can run.
var factories = map[string]driver.Factory{
	"ava": arena.Factory,
	"tvt": arena.Factory,
}

func main() {
	envCfg, err := loadEnv()
	if err != nil {
		log.Fatalf("[server] %v", err)
	}

	var (
		addr       = flag.String("addr", envCfg.Addr, "http listen address")
		configDir  = flag.String("configs", envCfg.ConfigDir, "config directory")
		dataDir    = flag.String("data", envCfg.DataDir, "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the round index")
	)
	flag.Parse()

	newLogger := func(name string) *log.Logger {
		return log.New(os.Stdout, "["+name+"] ", log.LstdFlags|log.Lmicroseconds)
	}
	logger := newLogger("server")

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune, _ = tuning.Load("")
	}

	cat, err := catalogs.Load(filepath.Join(*configDir, "events"))
	if err != nil {
		logger.Fatalf("load event catalog: %v", err)
	}
	msgs, err := messages.Load(filepath.Join(*configDir, "messages"))
	if err != nil {
		logger.Fatalf("load messages: %v", err)
	}

	_ = os.MkdirAll(*dataDir, 0o755)
	idx, err := openRuntimeIndex(*dataDir, envCfg.IndexBackend, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(cat, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}
	roundLog := persistlog.NewRoundLogger(*dataDir)
	auditLog := persistlog.NewAuditLogger(*dataDir)
	defer roundLog.Close()
	defer auditLog.Close()

	bridge := ws.NewServer(ws.Config{
		Logger:       newLogger("ws"),
		Token:        envCfg.BridgeToken,
		EventsDigest: cat.Digest,
		Messages:     msgs,
	})

	mgr := engine.New(engine.Config{
		Messages:            msgs,
		World:               bridge,
		Logger:              newLogger("engine"),
		DisableLoginNotices: !tune.LoginNotices,
	})
	drv, err := driver.New(driver.Config{
		Manager:  mgr,
		Tuning:   tune,
		Catalog:  cat,
		World:    bridge,
		Messages: msgs,
		Logger:   newLogger("driver"),
	})
	if err != nil {
		logger.Fatalf("driver: %v", err)
	}
	for kind, f := range factories {
		drv.Register(kind, f)
	}

	sinks := faultSinks{auditLog}
	drv.AddSink(roundLog)
	if idx != nil {
		sinks = append(sinks, idx)
		drv.AddSink(idx)
	}
	mgr.SetFaultSink(sinks)

	kinds := drv.Playable(cat.EnabledKinds())
	enabled := true
	if err := mgr.ReloadCandidates(kinds); err != nil {
		if !errors.Is(err, engine.ErrNoCandidates) {
			logger.Fatalf("candidates: %v", err)
		}
		logger.Printf("no playable event kinds enabled; event engine disabled")
		enabled = false
	} else {
		bridge.SetEngine(mgr)
		logger.Printf("event kinds: %s (digest %s)", strings.Join(kinds, ","), cat.Digest)
	}

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/ws", bridge.Handler())

	if envCfg.adminEnabled() {
		var state *engine.Manager
		if enabled {
			state = mgr
		}
		var rounds roundSource
		if idx != nil {
			rounds = idx
		}
		mux.HandleFunc("/admin/v1/state", stateHandler(state, bridge.Sessions))
		mux.HandleFunc("/admin/v1/rounds", roundsHandler(rounds))
	} else {
		logger.Printf("admin endpoints disabled (EE_ENABLE_ADMIN_HTTP=false)")
	}
	if envCfg.EnablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	// The ticker goes last so no phase runs before every sink is wired.
	driverDone := make(chan struct{})
	if enabled {
		ticker := clock.NewTicker(clock.Config{StartDelay: tune.StartDelay(), Period: tune.TickPeriod()})
		go func() {
			defer close(driverDone)
			if err := drv.Run(ctx, ticker); err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("driver stopped: %v", err)
			}
		}()
	} else {
		close(driverDone)
	}

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// The deferred sink closes run after this; nothing may dispatch or emit
	// by then.
	cancel()
	bridge.Close()
	<-driverDone
	logger.Printf("stopped")
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
