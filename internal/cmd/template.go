package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"api-contract-tester/internal/llm"
	"api-contract-tester/internal/paramsource"
	"api-contract-tester/internal/testdata"
)

// NewTemplateCommand creates the template command
func NewTemplateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Generate a params template from the API document",
		Long: `Template writes ` + testdata.TemplateFile + ` with a sample value for every
parameter a request needs and an override stub for every operation other
than GET. Copy it to the params file and replace the samples with values
that exist in the target service.

With --from-db, values are taken from existing rows of the configured
params database: a parameter matches a column of the same name or the id
column of the table it names. With --suggest, a language model proposes
realistic values for the parameters still without one (requires
llm.api_key or OPENAI_API_KEY). Type-based samples fill the rest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer log.Close()

			var suggesters testdata.Chain
			if fromDB, _ := cmd.Flags().GetBool("from-db"); fromDB {
				if !cfg.Params.Database.Enabled() {
					return fmt.Errorf("--from-db requires params.database to be configured")
				}
				db, err := paramsource.Open(cmd.Context(), cfg.Params.Database)
				if err != nil {
					return err
				}
				defer db.Close()
				suggesters = append(suggesters, paramsource.NewHarvester(db, cfg.Params.Database.Driver, log))
			}
			if suggest, _ := cmd.Flags().GetBool("suggest"); suggest {
				client, err := llm.NewClient(&cfg.LLM, log)
				if err != nil {
					return fmt.Errorf("failed to create LLM client: %w", err)
				}
				suggesters = append(suggesters, client)
			}
			var suggester testdata.Suggester
			if len(suggesters) > 0 {
				suggester = suggesters
			}

			if !isLocalDocument(cfg.Target.Document) {
				if err := requireBaseURL(cfg); err != nil {
					return err
				}
			}
			doc, err := newDocumentLoader(cfg, authConfig(cfg), log).Load(cmd.Context(), cfg.Target.Document)
			if err != nil {
				return err
			}

			outputDir, _ := cmd.Flags().GetString("output-dir")
			path, err := testdata.NewGenerator(outputDir, suggester, log).GenerateTemplate(cmd.Context(), doc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Params template written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().String("base-url", "", "Base URL of the service under test")
	cmd.Flags().String("document", "", "Document path on the service, absolute URL or local file")
	cmd.Flags().Bool("discover", false, "Try well-known document locations when the document cannot be fetched")
	cmd.Flags().String("output-dir", "testdata", "Directory for the generated template")
	cmd.Flags().Bool("from-db", false, "Take values from existing rows of the params database")
	cmd.Flags().Bool("suggest", false, "Ask the configured language model for realistic values")

	return cmd
}
