package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/altafino/attachment-store/internal/app"
	"github.com/altafino/attachment-store/internal/config"
	"github.com/altafino/attachment-store/internal/logger"
	"github.com/altafino/attachment-store/internal/types"
)

const defaultConfigPath = "./config/attachment-store.yaml"

var (
	cfgFile     string
	logLevel    string
	logFormat   string
	serverPort  int
	storageRoot string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "attachment-store",
	Short: "Durable attachment storage service",
	Long: `Stores binary attachments under caller supplied ids in a directory tree,
serves them over HTTP and optionally ingests attachments from a POP3 or IMAP mailbox.`,
	SilenceUsage: true,
}

func init() {
	// Command line flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath, "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override logging format (text, json, dev)")
	rootCmd.PersistentFlags().IntVar(&serverPort, "port", 0, "override server port")
	rootCmd.PersistentFlags().StringVar(&storageRoot, "storage-root", "", "override storage root directory")

	// Bind flags to viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("server.port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("storage.root", rootCmd.PersistentFlags().Lookup("storage-root"))

	viper.SetEnvPrefix("ATTACHMENT_STORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(
		serveCmd(),
		listCmd(),
		putCmd(),
		getCmd(),
		rmCmd(),
		auditCmd(),
		ingestCmd(),
	)
}

// overrides applies flag and environment values on top of the config file
func overrides(cfg *types.Config) {
	if v := viper.GetString("logging.level"); v != "" {
		cfg.Logging.Level = v
	}
	if v := viper.GetString("logging.format"); v != "" {
		cfg.Logging.Format = v
	}
	if v := viper.GetInt("server.port"); v != 0 {
		cfg.Server.Port = v
	}
	if v := viper.GetString("storage.root"); v != "" {
		cfg.Storage.Root = v
	}
}

type session struct {
	cfg        *types.Config
	configPath string
	logger     *slog.Logger
	app        *app.App
	logCloser  io.Closer
}

// open loads the configuration, sets up logging and opens the store. Only
// the server logs to stdout; the other commands keep it for their output.
func open(serving bool) (*session, error) {
	path := viper.GetString("config")
	cfg, err := config.LoadOptional(path, overrides)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if !serving && cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}

	log, closer, err := logger.Setup(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(log)

	a, err := app.New(cfg, log)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &session{cfg: cfg, configPath: path, logger: log, app: a, logCloser: closer}, nil
}

func (s *session) close() {
	s.app.Stop()
	s.logCloser.Close()
}
