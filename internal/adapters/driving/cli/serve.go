package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/agrafes/internal/adapters/driven/config/file"
	"github.com/custodia-labs/agrafes/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/agrafes/internal/logger"
)

var (
	serveHost      string
	servePort      int
	serveTokenMode string
	serveConfig    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the localhost HTTP sidecar",
	Long: `Starts the persistent loopback-only sidecar for this database. Exactly one
JSON startup record is written to stdout; when another sidecar already
serves the database, the record says already_running and no second listener
opens. Port 0 asks the OS for a free port.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "bind host (default from config, 127.0.0.1)")
	serveCmd.Flags().IntVar(&servePort, "port", -1, "bind port, 0 for OS-assigned (default from config)")
	serveCmd.Flags().StringVar(&serveTokenMode, "token", "", "token mode: off, auto, or an explicit token")
	serveCmd.Flags().StringVar(&serveConfig, "config", "", "path to config.toml")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	configStore, err := configfile.NewConfigStore(serveConfig)
	if err != nil {
		return err
	}
	defer configStore.Close()

	cfg := configStore.Config().Sidecar
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort >= 0 {
		cfg.Port = servePort
	}
	if serveTokenMode != "" {
		cfg.TokenMode = serveTokenMode
	}

	store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	server, err := httpapi.NewServer(httpapi.Config{
		DBPath:    store.Path(),
		Host:      cfg.Host,
		Port:      cfg.Port,
		TokenMode: cfg.TokenMode,
	}, engine)
	if err != nil {
		return err
	}

	record, err := server.Start()
	if err != nil {
		return err
	}
	if err := printJSON(record); err != nil {
		return err
	}
	if record.Status == "already_running" {
		return nil
	}

	// Rule packs reload live while the sidecar runs.
	if err := configStore.Watch(nil); err != nil {
		logger.Warn("config watch unavailable: %v", err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-signals:
		logger.Info("received %s, shutting down", sig)
	case <-server.ShutdownRequested():
		logger.Info("shutdown requested over HTTP")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
