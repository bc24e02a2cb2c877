// Command agentd runs the agent HTTP service. Configuration comes from
// flags, AGENTD_* environment variables and an optional .env file, in that
// order of precedence.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jkmaina/autogen-blueprint/pkg/slogx"
	"github.com/jkmaina/autogen-blueprint/service"
	_ "github.com/joho/godotenv/autoload"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log := zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slog.LevelInfo}),
	))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("agentd failed", slogx.Error(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetDefault("listen", ":8000")
	v.SetEnvPrefix("AGENTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:          "agentd",
		Short:        "Agent HTTP service",
		Long:         "agentd serves agent management and task execution over HTTP.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := v.BindPFlag("listen", cmd.Flags().Lookup("listen")); err != nil {
				return err
			}
			return run(v)
		},
	}

	cmd.Flags().StringP("listen", "l", ":8000", "address to listen on")

	return cmd
}

func run(v *viper.Viper) error {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set")
	}

	server, err := service.NewServer(service.Config{ListenAddr: v.GetString("listen")})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}
