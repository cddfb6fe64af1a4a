package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/omochice/linechat/internal/bridge"
	"github.com/omochice/linechat/internal/chat"
	"github.com/omochice/linechat/internal/client"
	"github.com/omochice/linechat/internal/config"
	"github.com/omochice/linechat/internal/logging"
	"github.com/omochice/linechat/internal/ui"
	"github.com/omochice/linechat/pkg/protocol"
)

var (
	configPath string
	envFiles   []string
	host       string
	port       int
	username   string
	escape     bool
	plain      bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "linechat",
	Short: "Terminal client for a line-based chat relay",
	Long: `linechat connects to a relay, announces you, and shows every TEXT and
IMAGE line the relay sends. Your own messages are echoed locally.

Settings come from defaults, an optional TOML file, LINECHAT_* environment
variables (a .env file is read first) and finally the flags below.`,
	SilenceUsage: true,
	RunE:         runClient,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "TOML config file")
	f.StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")
	f.StringVar(&host, "host", "", "relay host")
	f.IntVarP(&port, "port", "p", 0, "relay port")
	f.StringVarP(&username, "username", "u", "", "name to chat as")
	f.BoolVar(&escape, "escape", false, "percent-escape '@' and line breaks inside fields")
	f.BoolVar(&plain, "plain", false, "line-oriented stdin/stdout mode instead of the full-screen UI")
	f.StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, disabled)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Server.Host = host
	}
	if f.Changed("port") {
		cfg.Server.Port = port
	}
	if f.Changed("username") {
		cfg.User.Name = username
	}
	if f.Changed("escape") {
		cfg.Wire.EscapeFields = escape
	}
	if f.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
}

func runClient(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.User.Name == "" {
		return errors.New("username is required: use --username, [user] name or LINECHAT_USER_NAME")
	}

	logOpts := logging.Options{Level: cfg.Log.Level, File: cfg.Log.File}
	if plain {
		logOpts = logging.Options{Level: cfg.Log.Level, Console: true}
	}
	log, closer, err := logging.New(logOpts)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := cmd.Context()
	session := chat.NewSession(cfg.User.Name)
	events := bridge.NewMailbox[protocol.Event]()
	defer events.Close()

	var sender ui.Sender
	tr, err := dial(ctx, cfg, log, events)
	if err != nil {
		log.Error().Err(err).Msg("running offline")
		if plain {
			fmt.Fprintf(os.Stderr, "Failed to connect to %s: %v\n", cfg.Address(), err)
		}
	} else {
		sender = tr
		defer func() {
			tr.Close()
			<-tr.Done()
		}()
		if err := tr.Join(ctx, session.Username()); err != nil {
			log.Warn().Err(err).Msg("failed to send join announcement")
		}
		tr.Start(func(ev protocol.Event) { events.Post(ev) })
	}

	if plain {
		return runPlain(ctx, os.Stdin, os.Stdout, sender, session, events)
	}

	model := ui.New(ui.Options{
		Session:     session,
		Sender:      sender,
		Events:      events,
		Codec:       cfg.Codec(),
		Title:       cfg.Address(),
		SendTimeout: cfg.Transport.WriteTimeout,
	})
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}

// dial connects using cfg. The close notice is posted to events so the UI
// learns about it on its own loop.
func dial(ctx context.Context, cfg *config.Config, log zerolog.Logger, events *bridge.Mailbox[protocol.Event]) (*client.Transport, error) {
	if cfg.Transport.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Transport.DialTimeout)
		defer cancel()
	}
	return client.Dial(ctx, cfg.Server.Host, cfg.Server.Port,
		client.WithLogger(log),
		client.WithReadBufferSize(cfg.Transport.ReadBufferSize),
		client.WithMaxFrameSize(cfg.Transport.MaxFrameSize),
		client.WithWriteTimeout(cfg.Transport.WriteTimeout),
		client.WithCodec(cfg.Codec()),
		client.WithOnClosed(func(cause error) {
			events.Post(protocol.SystemEvent{Body: closedNotice(cause)})
		}),
	)
}

func closedNotice(cause error) string {
	if cause == nil {
		return "Disconnected from server"
	}
	return fmt.Sprintf("Disconnected from server: %v", cause)
}
