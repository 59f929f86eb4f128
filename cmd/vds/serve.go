package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pipespec/valve-datasheet/internal/server"
	"github.com/pipespec/valve-datasheet/pkg/engine"
)

// shutdownTimeout bounds the graceful drain after SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the datasheet API over HTTP",
		Long: `Serve loads the rulebooks and extracted documents once, then serves the
JSON API under /api/v1 until SIGINT or SIGTERM. In-flight requests get up
to 30 seconds to drain on shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "Interface to bind")
	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on")
	_ = viper.BindPFlag("host", cmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("port", cmd.Flags().Lookup("port"))

	return cmd
}

func runServe(ctx context.Context) error {
	// glog wants the standard flag set parsed before first use.
	_ = flag.Set("logtostderr", "true")
	_ = flag.CommandLine.Parse([]string{})

	slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(slogger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slogger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	slogger.Info("starting datasheet server",
		"configDir", resolvedConfigDir(),
		"dataDir", resolvedDataDir(),
	)

	eng, err := engine.Load(ctx, resolvedConfigDir(), resolvedDataDir(),
		engine.WithLogger(slogger))
	if err != nil {
		glog.Fatalf("Failed to load rulebooks: %v", err)
	}

	slogger.Info("rulebooks loaded",
		"prefixes", len(eng.SupportedPrefixes()),
		"pipingClasses", eng.PipingClassCount(),
		"vdsIndex", eng.IndexCount(),
	)

	addr := net.JoinHostPort(viper.GetString("host"), strconv.Itoa(viper.GetInt("port")))
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.New(eng, slogger).Routes(),
	}

	go func() {
		slogger.Info("datasheet server ready", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	slogger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slogger.Error("HTTP server shutdown error", "error", err)
	}

	slogger.Info("datasheet server stopped")
	return nil
}
