package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/portal-chat/room-chat/identity"
	"github.com/gosuda/portal-chat/room-chat/session"
	"github.com/gosuda/portal-chat/room-chat/transport"
)

var rootCmd = &cobra.Command{
	Use:          "room-chat",
	Short:        "Terminal client for a room-based websocket chat relay",
	SilenceUsage: true,
	RunE:         runChat,
}

var flagConfig string

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", "", "config file (default <user config dir>/room-chat/room-chat.yaml)")
	flags.String("server-url", "", "relay websocket URL, e.g. ws://localhost:5000/ws")
	flags.String("data-path", "", "directory of the PebbleDB store that keeps the display name")
	flags.String("default-room", "", "room the relay joins new connections to")
	flags.Bool("assume-default-join", false, "treat the default room as joined on connect")
	flags.Bool("ephemeral", false, "keep the display name in memory only")
	flags.String("log-file", "", "log file path")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(flagConfig, cmd.Flags())
	if err != nil {
		return err
	}
	logs, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer logs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := openIdentityStore(cfg)
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("[identity] store close error")
		}
	}()
	id, err := identity.Load(store, identity.GuestName)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	m := newModel()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	// Handlers run on the bubbletea loop, one at a time, in delivery order.
	opts := append(cfg.transportOptions(), transport.WithExecutor(func(fn func()) {
		p.Send(runMsg(fn))
	}))
	tr := transport.New(cfg.ServerURL, opts...)
	defer tr.Close()

	ctrl := session.New(tr, id, session.Options{
		DefaultRoom:       cfg.DefaultRoom,
		AssumeDefaultJoin: cfg.AssumeDefaultJoin,
		ScrollEpsilon:     cfg.ScrollEpsilon,
		OnChange:          m.onChange,
	})
	m.bind(ctrl)

	go keepConnected(ctx, tr, cfg.ReconnectInterval)

	log.Info().Str("server_url", cfg.ServerURL).Str("username", id.Name()).Msg("[chat] starting")
	_, err = p.Run()
	stop()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run tui: %w", err)
	}
	log.Info().Msg("[chat] shutdown complete")
	return nil
}

// openIdentityStore falls back to memory when the on-disk store cannot be opened.
func openIdentityStore(cfg *config) identity.Store {
	if cfg.Ephemeral {
		return identity.NewMemoryStore()
	}
	s, err := identity.OpenPebbleStore(cfg.DataPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.DataPath).Msg("[identity] open store failed; running in memory only")
		return identity.NewMemoryStore()
	}
	return s
}

// keepConnected dials now and then every interval while disconnected.
// A zero interval dials once.
func keepConnected(ctx context.Context, tr *transport.Session, every time.Duration) {
	for {
		if !tr.Connected() {
			err := tr.Connect(ctx)
			switch {
			case err == nil, errors.Is(err, transport.ErrAlreadyConnected):
			case errors.Is(err, transport.ErrClosed):
				return
			default:
				log.Debug().Err(err).Msg("[chat] connect failed")
			}
		}
		if every <= 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(every):
		}
	}
}
