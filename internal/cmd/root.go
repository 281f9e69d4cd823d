// Package cmd implements the api-contract-tester command line.
package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"api-contract-tester/internal/config"
	"api-contract-tester/internal/executor"
	"api-contract-tester/internal/logger"
	"api-contract-tester/internal/parser"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api-contract-tester",
		Short: "Contract tests for services described by Swagger/OpenAPI documents",
		Long: `api-contract-tester fetches the Swagger or OpenAPI document of a running
service, derives one request per operation, executes the requests concurrently
and validates every response against the schemas the document declares.

Configuration is loaded from config/config.yaml if present.
CLI flags override configuration file settings.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
		// main prints the returned error
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: "+config.DefaultPath+")")
	cmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewTemplateCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// loadConfig reads the configuration named by --config and applies the
// flags shared by all commands.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if cmd.Flags().Changed("base-url") {
		cfg.Target.BaseURL, _ = cmd.Flags().GetString("base-url")
	}
	if cmd.Flags().Changed("document") {
		cfg.Target.Document, _ = cmd.Flags().GetString("document")
	}
	if cmd.Flags().Changed("discover") {
		cfg.Target.Discover, _ = cmd.Flags().GetBool("discover")
	}
	return cfg, nil
}

// newLogger logs to a file when a log directory is configured and to w otherwise.
func newLogger(cfg *config.Config, w io.Writer) (*logger.Logger, error) {
	if cfg.Logging.Dir != "" {
		return logger.NewFileLogger(cfg.Logging.Dir, cfg.Logging.Level)
	}
	return logger.New(w, cfg.Logging.Level), nil
}

// newDocumentLoader reads the document from disk when it names an existing
// local file and from the target service otherwise.
func newDocumentLoader(cfg *config.Config, auth executor.AuthConfig, log *logger.Logger) *parser.SwaggerParser {
	if isLocalDocument(cfg.Target.Document) {
		return parser.NewSwaggerParser(parser.FileFetcher{}, false, log)
	}
	fetcher := parser.NewHTTPFetcher(cfg.Target.BaseURL, &http.Client{Timeout: cfg.Timeout()}, auth.Headers())
	return parser.NewSwaggerParser(fetcher, cfg.Target.Discover, log)
}

func isLocalDocument(path string) bool {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func authConfig(cfg *config.Config) executor.AuthConfig {
	return executor.AuthConfig{
		Type:   cfg.Target.Auth.Type,
		Token:  cfg.Target.Auth.Token,
		Header: cfg.Target.Auth.Header,
	}
}

func requireBaseURL(cfg *config.Config) error {
	if cfg.Target.BaseURL == "" {
		return fmt.Errorf("target base URL is required: set target.base_url, CONTRACT_BASE_URL or --base-url")
	}
	return nil
}
