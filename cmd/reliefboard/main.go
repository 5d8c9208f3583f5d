package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reliefboard/internal/app"
	"reliefboard/internal/config"
	"reliefboard/internal/logging"
	"reliefboard/internal/services"
	"reliefboard/internal/utils"
)

// @title                       reliefboard API
// @version                     1.0
// @description                 Gateway for the disaster-relief volunteer task board.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "reliefboard",
		Short:        "Volunteer task board gateway",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newHashPasswordCmd(), newGenSecretCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(cfg, logger)
			if err != nil {
				logger.Error("[main] init failed", zap.Error(err))
				return err
			}
			return a.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "path to config.yaml")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for an account's password_hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pw string
			if len(args) == 1 {
				pw = args[0]
			} else {
				var err error
				pw, err = readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}
			if pw == "" {
				return errors.New("empty password")
			}
			hash, err := services.HashPassword(pw)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}

func newGenSecretCmd() *cobra.Command {
	var nBytes int
	cmd := &cobra.Command{
		Use:   "gen-secret",
		Short: "Print a random hex secret for auth.jwt_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := utils.NewSecret(nBytes)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), s)
			return err
		},
	}
	cmd.Flags().IntVar(&nBytes, "bytes", 32, "secret length in bytes")
	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
