package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/appointment-assistant/sessionsync/internal/agent"
	"github.com/appointment-assistant/sessionsync/internal/config"
	"github.com/appointment-assistant/sessionsync/internal/logging"
	"github.com/appointment-assistant/sessionsync/internal/ws"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	port       int
	host       string
	token      string
	devLog     bool
)

var rootCmd = &cobra.Command{
	Use:   "agent-sim",
	Short: "Simulated appointment voice agent",
	Long: `Serves a scripted appointment-booking agent over websocket.

Every frontend connecting to /rpc gets its own conversation: the caller is
identified, two appointments are booked, one is moved and one cancelled,
then the agent sends its end-of-call summary. Bookings are kept in memory
and shared between connections.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.Flags().IntVar(&port, "port", 0, "Override server port")
	rootCmd.Flags().StringVar(&host, "host", "", "Override listen host")
	rootCmd.Flags().StringVar(&token, "token", "", "Require this bearer token from frontends")
	rootCmd.Flags().BoolVar(&devLog, "dev", false, "Human-readable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if token != "" {
		cfg.Server.AuthToken = token
	}
	if devLog {
		cfg.Log.Development = true
		cfg.Log.Level = "debug"
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := ws.NewServer(cfg, agent.NewBook(nil), logger)
	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	err = ws.ListenAndServe(ctx, cfg.Addr(), mux, logger)
	if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shut down", zap.Int("open_connections", server.Connections()))
	return nil
}
