package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"predictivecoder/client/openai"
	"predictivecoder/config"
	"predictivecoder/logger"
	"predictivecoder/provider"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	daemon     bool
	configPath string
	apiKey     string
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "predictivecoder:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "predictivecoder",
		Short:         "Inline code suggestions for Neovim",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.daemon {
				return runDaemon(opts)
			}
			return runClient()
		},
	}

	root.Flags().BoolVar(&opts.daemon, "daemon", false, "run as the background daemon")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.predictivecoder/config.toml)")
	root.PersistentFlags().StringVar(&opts.apiKey, "api-key", "", "API key override")

	root.AddCommand(newDaemonCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newToggleCmd())
	return root
}

func newDaemonCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(opts)
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage credentials and configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set-key <key>",
		Short: "Save the API key to the per-user credentials file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.SaveAPIKey(args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "API key saved to %s\n", config.UserCredentialsPath())
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "test-key",
		Short: "Send a minimal request with the resolved API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, settings, err := loadConfig(opts)
			if err != nil {
				return err
			}
			key, source := config.ResolveAPIKey(config.DefaultCredentialSources(cfg, settings)...)
			if key == "" {
				return fmt.Errorf("no API key configured; run `predictivecoder config set-key <key>`")
			}

			prov := provider.New(provider.Options{
				Model:  cfg.Model,
				Client: openai.NewClient(cfg.BaseURL, cfg.CompressResponses),
				APIKey: func() string { return key },
			})
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			if err := prov.TestAPIKey(ctx); err != nil {
				return fmt.Errorf("API key from %s rejected: %w", source, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "API key from %s works\n", source)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the state directory paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config:      %s\n", config.ConfigPath())
			fmt.Fprintf(out, "settings:    %s\n", config.SettingsPath())
			fmt.Fprintf(out, "credentials: %s\n", config.UserCredentialsPath())
			fmt.Fprintf(out, "log:         %s\n", config.LogPath())
			_, err := fmt.Fprintf(out, "metrics:     %s\n", config.MetricsPath())
			return err
		},
	})

	return cmd
}

func newToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Flip automatic suggestions on or off",
		Long: "Flip automatic suggestions on or off in the settings file.\n\n" +
			"A running daemon re-reads the file on the next buffer enter or toggle event.",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings(config.SettingsPath())
			if err != nil {
				return err
			}
			on := settings.ToggleAutoSuggest()
			if err := settings.Save(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "auto-suggest: %v\n", on)
			return err
		},
	}
}

func loadConfig(opts *rootOptions) (config.Config, *config.Settings, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if key := strings.TrimSpace(opts.apiKey); key != "" {
		cfg.APIKey = key
	}
	settings, err := config.LoadSettings(config.SettingsPath())
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, settings, nil
}

// setupLogger opens the daemon log in the state directory and routes the
// standard library logger into it. Caller must Close the result.
func setupLogger(level string) (*logger.Logger, error) {
	if err := os.MkdirAll(config.StateDir(), 0o700); err != nil {
		return nil, err
	}
	l, err := logger.Init(config.LogPath(), logger.ParseLogLevel(level))
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	zap.RedirectStdLog(l.Zap())
	return l, nil
}

func runDaemon(opts *rootOptions) error {
	cfg, settings, err := loadConfig(opts)
	if err != nil {
		return err
	}

	l, err := setupLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer l.Close()
	logger.Info("config: model=%s base_url=%s namespace=%s", cfg.Model, cfg.BaseURL, cfg.Namespace)

	daemon, err := NewDaemon(cfg, settings)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	return daemon.Start()
}

func runClient() error {
	client := NewClient()

	if err := client.EnsureDaemonRunning(); err != nil {
		return fmt.Errorf("ensure daemon running: %w", err)
	}
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	return nil
}

func isDaemonRunning() (bool, int) {
	data, err := os.ReadFile(config.PidPath())
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	// On Unix, Signal(0) checks if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil, pid
}
