package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-feishu-auth/internal/config"
	"github.com/jrsteele09/go-feishu-auth/passport"
	"github.com/jrsteele09/go-feishu-auth/server"
	"github.com/jrsteele09/go-feishu-auth/server/authflowrepo"
	"github.com/jrsteele09/go-feishu-auth/server/loginsession"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "feishu-login",
		Short: "Login host for Feishu (and optionally GitHub) OAuth2 sign-in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}

	rootCmd.Flags().String("port", "8080", "HTTP listen port")
	rootCmd.Flags().String("env", "DEV", "Environment (DEV enables console logging and route listing)")
	rootCmd.Flags().String("log_level", "info", "zerolog level: debug, info, warn, error")
	rootCmd.Flags().String("base_url", "http://localhost:8080", "Externally visible base URL of this host")
	rootCmd.Flags().String("feishu_app_type", "public", "Feishu app type: public or internal")

	_ = viper.BindPFlag("PORT", rootCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("ENV", rootCmd.Flags().Lookup("env"))
	_ = viper.BindPFlag("LOG_LEVEL", rootCmd.Flags().Lookup("log_level"))
	_ = viper.BindPFlag("BASE_URL", rootCmd.Flags().Lookup("base_url"))
	_ = viper.BindPFlag("FEISHU_APP_TYPE", rootCmd.Flags().Lookup("feishu_app_type"))

	return rootCmd
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	pp, err := passport.FromConfig(c, &http.Client{Timeout: c.GetProviderTimeout()})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid provider configuration")
	}

	handler, err := server.New(c, pp, loginsession.NewInMemoryLoginSessionRepo(), authflowrepo.NewInMemoryRepo(c.GetStateTimeout()))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- listenAndServe(httpServer)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-waitForStopSignal():
	}

	returnError = shutdown(httpServer)
	log.Info().Msg("server stopped")
	return returnError
}

func setupLogging(c config.EnvConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
