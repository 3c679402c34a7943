package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/agrafes/internal/adapters/driven/config/file"
	"github.com/custodia-labs/agrafes/internal/core/domain"
)

var (
	curateDocID     int64
	curateRulesFile string
	curatePack      string
	curateConfig    string
	curatePreview   bool
	curateExamples  int
)

var curateCmd = &cobra.Command{
	Use:   "curate",
	Short: "Apply regex curation rules to normalized text",
	Long: `Rewrites text_norm using an ordered rule list from a JSON file (--rules)
or a named rule pack in config.toml (--pack). With --preview nothing is
written and before/after samples are reported. After an apply the FTS index
is stale until 'agrafes index' runs. text_raw is never touched.`,
	RunE: runCurate,
}

func init() {
	curateCmd.Flags().Int64Var(&curateDocID, "doc-id", 0, "curate one document (default: all)")
	curateCmd.Flags().StringVar(&curateRulesFile, "rules", "", "path to a JSON rule list")
	curateCmd.Flags().StringVar(&curatePack, "pack", "", "named rule pack from config.toml")
	curateCmd.Flags().StringVar(&curateConfig, "config", "", "path to config.toml")
	curateCmd.Flags().BoolVar(&curatePreview, "preview", false, "dry-run: report changes without writing")
	curateCmd.Flags().IntVar(&curateExamples, "examples", domain.DefaultPreviewExamples, "preview sample cap (1..50)")
	rootCmd.AddCommand(curateCmd)
}

// loadRules resolves the rule list from --rules or --pack.
func loadRules() ([]domain.CurationRule, error) {
	switch {
	case curateRulesFile != "" && curatePack != "":
		return nil, fmt.Errorf("--rules and --pack are mutually exclusive: %w", domain.ErrValidation)
	case curateRulesFile != "":
		data, err := os.ReadFile(curateRulesFile)
		if err != nil {
			return nil, fmt.Errorf("reading rules file: %w", err)
		}
		var rules []domain.CurationRule
		if err := json.Unmarshal(data, &rules); err != nil {
			return nil, fmt.Errorf("parsing rules file: %v: %w", err, domain.ErrValidation)
		}
		return rules, nil
	case curatePack != "":
		configStore, err := configfile.NewConfigStore(curateConfig)
		if err != nil {
			return nil, err
		}
		defer configStore.Close()
		pack, err := configStore.RulePack(curatePack)
		if err != nil {
			return nil, err
		}
		return pack.Rules, nil
	}
	return nil, fmt.Errorf("one of --rules or --pack is required: %w", domain.ErrValidation)
}

func runCurate(cmd *cobra.Command, _ []string) error {
	rules, err := loadRules()
	if err != nil {
		return err
	}

	store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	if curatePreview {
		if curateDocID == 0 {
			return fmt.Errorf("--preview requires --doc-id: %w", domain.ErrValidation)
		}
		preview, err := engine.CuratePreview(cmd.Context(), curateDocID, rules, curateExamples)
		if err != nil {
			return err
		}
		return printJSON(preview)
	}

	var docID *int64
	if curateDocID > 0 {
		docID = &curateDocID
	}
	result, err := engine.Curate(cmd.Context(), docID, rules)
	if err != nil {
		return err
	}
	return printJSON(result)
}
