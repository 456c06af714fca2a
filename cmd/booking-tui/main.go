package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/appointment-assistant/sessionsync/internal/config"
	"github.com/appointment-assistant/sessionsync/internal/logging"
	"github.com/appointment-assistant/sessionsync/internal/rpc"
	"github.com/appointment-assistant/sessionsync/internal/session"
	"github.com/appointment-assistant/sessionsync/internal/syncer"
	"github.com/appointment-assistant/sessionsync/internal/tui/app"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	agentURL   string
	token      string
	headless   bool
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "booking-tui",
	Short: "Frontend for the appointment voice agent",
	Long: `Connects to the voice agent, mirrors the appointments it books, moves
and cancels, shows which backend actions are running and renders the
end-of-call summary.

Without a terminal, --headless logs every state change instead.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.Flags().StringVar(&agentURL, "url", "", "Websocket URL of the agent (default from config)")
	rootCmd.Flags().StringVar(&token, "token", "", "Bearer token sent to the agent")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "Log state changes instead of drawing the TUI")
	rootCmd.Flags().StringVar(&logFile, "log-file", "booking-tui.log", "Log destination while the TUI owns the terminal")
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
	if agentURL != "" {
		cfg.Client.URL = agentURL
	}
	if token != "" {
		cfg.Client.Token = token
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if headless {
		logger, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}
		defer logger.Sync()
		return runHeadless(ctx, cfg, logger)
	}

	logger, err := logging.ToFile(cfg.Log, logFile)
	if err != nil {
		return err
	}
	defer logger.Sync()
	return runTUI(ctx, cfg, logger)
}

func runTUI(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	feed := app.NewFeed()
	sess := syncer.New(cfg, logger, syncer.WithNotices(app.Notify(feed)))
	defer sess.Close()

	m := app.New(ctx, sess, feed)
	go connect(ctx, cfg, logger, sess, func(connected bool, err error) {
		feed.Send(app.ConnMsg{Connected: connected, Err: err})
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// runHeadless logs masked snapshots and indicator changes until the agent
// sends its summary or ctx is done.
func runHeadless(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess := syncer.New(cfg, logger, syncer.WithNotices(func(n syncer.Notice) {
		if n.Err != nil {
			logger.Warn("event rejected", zap.String("method", n.Method), zap.Error(n.Err))
		}
	}))
	defer sess.Close()

	var summarized sync.Once
	done := make(chan struct{})
	sess.Store().Subscribe(func(s session.Snapshot) {
		st := sess.Masked(s.State)
		logger.Info("session updated",
			zap.Uint64("version", s.Version),
			zap.Int("appointments", len(st.Appointments)),
			zap.Int("active", st.ActiveCount()),
			zap.Any("state", st),
		)
		if st.Summary != nil {
			summarized.Do(func() {
				logger.Info("conversation summary", zap.String("summary", st.Summary.Summary))
				close(done)
			})
		}
	})
	sess.Refresher().Observe(func(calls []session.ToolCall) {
		names := make([]string, 0, len(calls))
		for _, c := range calls {
			names = append(names, c.Name+":"+c.Status.String())
		}
		logger.Info("indicators", zap.Strings("visible", names))
	})

	go connect(ctx, cfg, logger, sess, func(connected bool, err error) {
		if connected {
			logger.Info("connected to agent", zap.String("url", cfg.Client.URL))
		} else if err != nil {
			logger.Warn("agent unreachable", zap.Error(err))
		}
	})

	select {
	case <-done:
	case <-ctx.Done():
	}
	return nil
}

// connect keeps sess bound to the agent, redialing with backoff until ctx
// is done. report is called on every connect and disconnect.
func connect(ctx context.Context, cfg *config.Config, logger *zap.Logger, sess *syncer.Session, report func(bool, error)) {
	opts := rpc.OptionsFrom(cfg.RPC)
	backoff := rpc.Backoff{Base: cfg.Client.ReconnectBaseDelay, Max: cfg.Client.ReconnectMaxDelay}

	dial := func(ctx context.Context) (*rpc.Peer, error) {
		p, err := rpc.Dial(ctx, cfg.Client.URL, cfg.Client.Token, opts, logger)
		if err != nil {
			report(false, err)
		}
		return p, err
	}

	err := rpc.Redial(ctx, logger, backoff, dial, func(p *rpc.Peer) func() {
		release, err := sess.Open(p)
		if err != nil {
			logger.Warn("bind failed", zap.Error(err))
			p.Close()
			return func() {}
		}
		report(true, nil)
		return func() {
			release()
			report(false, p.Err())
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("reconnect loop stopped", zap.Error(err))
	}
}
