package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"scanledger/internal/server"
)

var (
	serveFlag       string
	serveHTTPPort   int
	serveBannerPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the practice target service",
	Long: `Run the practice target: an HTTP index page plus a TCP banner service
that sends a flag on connect, for producing scan output locally.

Examples:
  scanledger serve --flag "FLAG{my_flag}" --banner-port 31337`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlag, "flag", "",
		"flag string exposed by the banner service (or FLAG env var)")
	serveCmd.Flags().IntVar(&serveHTTPPort, "http-port", 0,
		"HTTP port (default from config)")
	serveCmd.Flags().IntVar(&serveBannerPort, "banner-port", 0,
		"TCP banner port (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveHTTPPort > 0 {
		cfg.Server.HTTPPort = serveHTTPPort
	}
	if serveBannerPort > 0 {
		cfg.Server.BannerPort = serveBannerPort
	}

	flag := serveFlag
	if flag == "" {
		flag = os.Getenv("FLAG")
	}

	srv := server.New(cfg, flag)
	if err := srv.Start(); err != nil {
		return err
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signalChan
	log.Info().Str("signal", sig.String()).Msg("Received termination signal")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
		return err
	}

	log.Info().Msg("Practice server stopped")
	return nil
}
