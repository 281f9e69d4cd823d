package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"api-contract-tester/internal/config"
	"api-contract-tester/internal/engine"
	"api-contract-tester/internal/executor"
	"api-contract-tester/internal/logger"
	"api-contract-tester/internal/paramsource"
	"api-contract-tester/internal/planner"
	"api-contract-tester/internal/reporter"
	"api-contract-tester/internal/telemetry"
	"api-contract-tester/internal/testdata"
	"api-contract-tester/internal/types"
	"api-contract-tester/internal/validator"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run contract tests against the target service",
		Long: `Run fetches the API document, plans one request per selected operation,
executes the requests with bounded concurrency and validates each response's
status code, body and headers against the document.

The command exits with an error when any assertion fails.

Examples:
  api-contract-tester run --base-url http://localhost:8080
  api-contract-tester run --document ./openapi.yaml --methods GET,POST
  api-contract-tester run --concurrency 10 --format console,html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}
			log, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer log.Close()

			_, err = runContractTests(cmd.Context(), cfg, cmd.OutOrStdout(), log)
			return err
		},
	}

	cmd.Flags().String("base-url", "", "Base URL of the service under test")
	cmd.Flags().String("document", "", "Document path on the service, absolute URL or local file")
	cmd.Flags().Bool("discover", false, "Try well-known document locations when the document cannot be fetched")
	cmd.Flags().Int("concurrency", 0, "Maximum number of requests in flight (0 = use config)")
	cmd.Flags().StringSlice("methods", nil, "HTTP methods to exercise")
	cmd.Flags().StringSlice("format", nil, "Report formats: console, json, html")
	cmd.Flags().String("output-dir", "", "Directory for report files")
	cmd.Flags().String("params", "", "Params file with known-good parameter values")
	cmd.Flags().Bool("fail-on-missing-params", false, "Abort when a required parameter has no value")
	cmd.Flags().Bool("detailed", false, "Include passing assertions in file reports")

	return cmd
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if n, _ := flags.GetInt("concurrency"); n > 0 {
		cfg.Test.Concurrency = n
	}
	if flags.Changed("methods") {
		methods, _ := flags.GetStringSlice("methods")
		cfg.Test.Methods = methods
	}
	if flags.Changed("format") {
		formats, _ := flags.GetStringSlice("format")
		cfg.Reporting.Format = formats
	}
	if dir, _ := flags.GetString("output-dir"); dir != "" {
		cfg.Reporting.OutputDir = dir
	}
	if path, _ := flags.GetString("params"); path != "" {
		cfg.Params.File = path
	}
	if flags.Changed("fail-on-missing-params") {
		cfg.Test.FailOnMissingParams, _ = flags.GetBool("fail-on-missing-params")
	}
	if flags.Changed("detailed") {
		cfg.Reporting.Detailed, _ = flags.GetBool("detailed")
	}
	return cfg.Validate()
}

// runContractTests performs one contract-test run and writes the configured
// reports. It returns engine.ErrAssertionsFailed when the run completed with
// failed assertions.
func runContractTests(ctx context.Context, cfg *config.Config, out io.Writer, log *logger.Logger) (*engine.Summary, error) {
	if err := requireBaseURL(cfg); err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Setup(cfg.Tracing.Endpoint, cfg.Tracing.Service)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warnf("Failed to flush traces: %v", err)
		}
	}()

	params, err := loadParams(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	auth := authConfig(cfg)
	transport := executor.NewHTTPTransport(executor.TransportConfig{
		BaseURL: cfg.Target.BaseURL,
		Timeout: cfg.Timeout(),
		Retry: executor.RetryConfig{
			Attempts: cfg.Test.Retry.Attempts,
			Delay:    cfg.RetryDelay(),
		},
		Auth: auth,
	}, log)

	recorder := reporter.NewRecorder(cfg.Target.BaseURL)
	reporters := reporter.Multi{recorder}
	if cfg.HasFormat("console") {
		reporters = append(reporters, reporter.NewConsole(out))
	}

	eng := engine.New(engine.Config{
		Loader:       newDocumentLoader(cfg, auth, log),
		DocumentPath: cfg.Target.Document,
		Planner: &planner.Planner{
			Params:    params.Params,
			Overrides: params.Endpoints,
			Methods:   cfg.Test.Methods,
			Skip:      cfg.Test.Skip,
		},
		Coordinator: executor.NewCoordinator(transport, cfg.Test.Concurrency, log),
		Reporter:    reporters,
		Validation: validator.Options{
			BanUnknownProperties: cfg.Validation.BanUnknownProperties,
			StrictIntegers:       cfg.Validation.StrictIntegers,
		},
		ValidateHeaders:     cfg.Validation.ValidateHeaders,
		FailOnMissingParams: cfg.Test.FailOnMissingParams,
		Logger:              log,
	})

	summary, runErr := eng.Run(ctx)

	paths, err := reporter.NewWriter(reporter.ReportingConfig{
		Format:    cfg.Reporting.Format,
		OutputDir: cfg.Reporting.OutputDir,
		Detailed:  cfg.Reporting.Detailed,
	}).Write(recorder.Report())
	if err != nil {
		log.Errorf("Failed to write reports: %v", err)
	}
	for _, p := range paths {
		fmt.Fprintf(out, "Report written to %s\n", p)
	}

	if runErr != nil {
		return summary, runErr
	}
	fmt.Fprintf(out, "\n%d passed, %d failed across %d operation(s)\n", summary.Passed, summary.Failed, summary.Operations)
	if !summary.OK() {
		return summary, engine.ErrAssertionsFailed
	}
	return summary, err
}

// loadParams reads the params file and fills in values from the configured
// database. A missing params file leaves only overrides and database values.
func loadParams(ctx context.Context, cfg *config.Config, log *logger.Logger) (*testdata.Params, error) {
	params, err := testdata.NewLoader(cfg.Params.File).Load()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warnf("Params file %s not found; parameters without a value cannot be planned", cfg.Params.File)
		params = &testdata.Params{Params: types.ValidParamTable{}}
	case err != nil:
		return nil, err
	}

	if cfg.Params.Database.Enabled() {
		table, err := paramsource.Load(ctx, cfg.Params.Database, log)
		if err != nil {
			return nil, fmt.Errorf("failed to load parameter values from database: %w", err)
		}
		params.Fill(table)
	}
	return params, nil
}
