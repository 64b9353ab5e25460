// Package app wires together config, logging, telemetry, a transport, and
// server.Server into a runnable process, grounded on the teacher's
// internal/app.Run(ctx, cfg) shutdown-ordering contract, but coordinating
// the tick loop, the admin HTTP server, and the shutdown step as sibling
// goroutines under golang.org/x/sync/errgroup instead of a hand-rolled
// stop channel + WaitGroup.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"bitwire/server/config"
	"bitwire/server/entitystore"
	"bitwire/server/internal/adminhttp"
	"bitwire/server/logging"
	loggingSinks "bitwire/server/logging/sinks"
	"bitwire/server/server"
	"bitwire/server/telemetry"
	"bitwire/server/transport"
	"bitwire/server/transport/ws"
)

// Config configures a Run invocation. Register is called once, after the
// Server is constructed but before Start, so an application can register
// its message handlers (auth, gameplay, chat, ...) on the returned
// Dispatcher.
type Config struct {
	Server     config.ServerConfig
	ListenAddr string
	Register   func(srv *server.Server)
	Interest   server.InterestManager
	Callbacks  server.Callbacks
}

// Run builds the full stack and blocks until ctx is canceled or a
// component fails, at which point every sibling goroutine is canceled
// together via errgroup.
func Run(ctx context.Context, cfg Config) error {
	metrics := telemetry.New(nil)

	logConfig := logging.DefaultConfig()
	router := logging.NewRouter(nil, logConfig, []logging.NamedSink{
		{Name: "console", Sink: loggingSinks.NewConsole(os.Stdout)},
	}, metrics)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := router.Close(closeCtx); err != nil {
			log.Printf("bitwire: failed to close logging router: %v", err)
		}
	}()

	store := entitystore.NewMemoryStore()
	interest := cfg.Interest
	if interest == nil {
		interest = server.NopInterestManager()
	}

	srv := server.New(cfg.Server, nil, store, interest, router, metrics, cfg.Callbacks)
	wsTransport := ws.New(cfg.ListenAddr, cfg.Server.MTU, srv)
	srv.BindTransport(wsTransport)

	if cfg.Register != nil {
		cfg.Register(srv)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("bitwire: server start: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runTickLoop(gctx, srv, wsTransport, cfg.Server.TickRate)
	})

	var adminServer *http.Server
	if cfg.Server.Observability.MetricsEnabled && cfg.Server.Observability.AdminAddr != "" {
		adminServer = &http.Server{Addr: cfg.Server.Observability.AdminAddr, Handler: adminhttp.NewRouter(srv)}
		g.Go(func() error {
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("bitwire: admin http: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		if adminServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			adminServer.Shutdown(shutdownCtx)
		}
		return srv.Stop()
	})

	return g.Wait()
}

func runTickLoop(ctx context.Context, srv *server.Server, tr transport.Transport, tickRate int) error {
	if tickRate <= 0 {
		tickRate = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tr.Tick()
			srv.Tick(ctx)
		}
	}
}
