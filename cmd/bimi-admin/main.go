package main

import (
	"fmt"
	"os"

	"github.com/jrsteele09/bimi-admin/internal/app"
	"github.com/jrsteele09/bimi-admin/internal/config"
	"github.com/jrsteele09/bimi-admin/internal/logging"
	"github.com/spf13/cobra"
)

var (
	profileDir string
	apiURL     string
	configFile string
	envFile    string
	logLevel   string

	cfg config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bimi-admin",
	Short: "Admin dashboard and CLI for Bimi datasets",
	Long: `bimi-admin manages the datasets behind the Bimi chatbot.

Run "bimi-admin serve" for the local web dashboard, or use the login,
logout, whoami and datasets commands from a terminal. Every command shares
the session stored in the profile directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		opts := []config.Option{config.WithConfigFile(configFile)}
		if envFile != "" {
			opts = append(opts, config.WithEnvFile(envFile))
		}
		if cmd.Flags().Changed("profile") {
			opts = append(opts, config.WithOverride(config.KeyProfileDir, profileDir))
		}
		if cmd.Flags().Changed("api") {
			opts = append(opts, config.WithOverride(config.KeyAPIBaseURL, apiURL))
		}
		if cmd.Flags().Changed("log-level") {
			opts = append(opts, config.WithOverride(config.KeyLogLevel, logLevel))
		}
		cfg = config.New(opts...)
		logging.Init(cfg.GetEnv(), cfg.GetLogLevel())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&profileDir, "profile", "p", "", "Profile directory holding the session (default $HOME/.bimi-admin)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Backend API base URL (or set BIMI_API_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Optional yaml/json/toml config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Dotenv file to load instead of ./.env")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(datasetsCmd)
}

// openApp wires the profile for a command. The caller closes it.
func openApp() (*app.App, error) {
	a, err := app.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("open profile: %w", err)
	}
	return a, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
