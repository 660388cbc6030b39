package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/atoreson/schemadiff/internal/api"
	"github.com/atoreson/schemadiff/internal/config"
	"github.com/atoreson/schemadiff/internal/logging"
	"github.com/atoreson/schemadiff/internal/ws"
)

var servePort int
var serveConfig string
var serveDevMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the live status server",
	Long:  `serve launches a small JSON/WebSocket status API that streams extraction phase and warning events from a compare run in progress.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg *config.Config
		configPath := serveConfig
		if configPath == "" {
			configPath = cfgFile
		}
		if configPath != "" {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		}

		logLevel, logDir := "info", ""
		if cfg != nil {
			if cfg.Logging.Level != "" {
				logLevel = cfg.Logging.Level
			}
			logDir = cfg.Logging.Directory
		}
		logger, err := logging.Setup(logLevel, logDir)
		if err != nil {
			return fmt.Errorf("setting up logging: %w", err)
		}
		if configPath != "" {
			logger.Info("loaded config", "path", configPath)
		}

		hub := ws.NewHub(logger)
		go hub.Run()

		srv := api.New(cfg, logger, servePort, hub).WithDevMode(serveDevMode)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		fmt.Fprintf(os.Stderr, "schemadiff status server: http://localhost:%d\n", servePort)

		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return err
			}
		case <-ctx.Done():
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8230, "port for the status server")
	serveCmd.Flags().StringVar(&serveConfig, "config", "", "path to config file for a pre-configured compare run")
	serveCmd.Flags().BoolVar(&serveDevMode, "dev", false, "enable CORS for development mode")
	rootCmd.AddCommand(serveCmd)
}
