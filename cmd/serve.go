package cmd

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trusthire/trusthire/internal/web"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const upstreamCheckTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the verification dashboard over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "address to listen on (default :8080)")

	viper.BindPFlag("serve.listen", serveCmd.Flags().Lookup("listen"))
}

func serve() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	log, config := setup()

	d, err := newDeps(ctx, config, log)
	if err != nil {
		log.Fatal("preparing the verification client", zap.Error(err))
	}

	srv, err := web.NewServer(d.client, d.controller, d.client.Limits, d.metrics, log)
	if err != nil {
		log.Fatal("creating the dashboard server", zap.Error(err))
	}

	listener, err := net.Listen("tcp", config.Serve.Listen)
	if err != nil {
		log.Fatal("listening", zap.String("address", config.Serve.Listen), zap.Error(err))
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gCtx, listener)
	})

	g.Go(func() error {
		checkCtx, checkCancel := context.WithTimeout(gCtx, upstreamCheckTimeout)
		defer checkCancel()

		// the dashboard still starts, submissions will surface the failure
		if err := d.client.Health(checkCtx); err != nil {
			log.Warn("verification service is not reachable yet", zap.String("url", d.client.APIURL), zap.Error(err))
			return nil
		}
		log.Info("verification service is reachable", zap.String("url", d.client.APIURL))
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal("dashboard server failed", zap.Error(err))
	}

	cancel()
	d.controller.Drain()
	log.Info("exiting")
}
