package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/linechat/internal/chat"
	"github.com/omochice/linechat/internal/logging"
	"github.com/omochice/linechat/internal/transport/tcp"
	"github.com/omochice/linechat/internal/transport/ws"
)

var (
	addr     string
	httpAddr string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "linechat-server",
	Short: "Relay that broadcasts every chat line to every connected peer",
	Long: `linechat-server accepts line peers over TCP and, when --http is set,
WebSocket peers on /ws. Every line received from any peer is written back to
all peers, the sender included.`,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.Flags().StringVar(&addr, "addr", ":8080", "TCP listen address")
	rootCmd.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address for WebSocket peers and /healthz (disabled when empty)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	log, closer, err := logging.New(logging.Options{Level: logLevel, Console: true})
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := chat.NewHub(log)
	g, ctx := errgroup.WithContext(ctx)

	tcpSrv := tcp.New(addr, hub, log)
	g.Go(func() error { return tcpSrv.Serve(ctx) })

	if httpAddr != "" {
		wsSrv := ws.New(httpAddr, hub, log)
		g.Go(func() error { return wsSrv.Serve(ctx) })
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("relay stopped: %w", err)
	}
	log.Info().Msg("relay stopped")
	return nil
}
