package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/config"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/killswitch"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/report"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/scoring"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/state"
)

// ScoreCommand re-derives verdicts, scores, and tiers from the stored
// enrichment records. No network access; useful after tuning the
// kill-switch policy or fixing a record by hand.
type ScoreCommand struct {
	configPath string
	inputCSV   string
	strict     bool
}

// NewScoreCommand creates the score command with its flag set.
func NewScoreCommand() *cobra.Command {
	sc := &ScoreCommand{}

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Re-score stored enrichment records without network access",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return sc.Execute(cmd)
		},
	}

	cmd.Flags().StringVar(&sc.configPath, "config", "", "config file path (default ./phxhomes.yaml)")
	cmd.Flags().StringVar(&sc.inputCSV, "input", defaultInputCSV, "properties CSV path")
	cmd.Flags().BoolVar(&sc.strict, "strict", false, "omit FAILED-tier rows from the ranked CSV")

	return cmd
}

// Execute re-runs kill-switch evaluation and scoring over every record
// present in the store, then rewrites the ranked CSV.
func (sc *ScoreCommand) Execute(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(sc.configPath)
	if err != nil {
		return err
	}

	props, err := loadProperties(sc.inputCSV)
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(cfg.Directories.WorkFile), 0o755)
	if err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	store, err := state.Open(cfg.Directories.WorkFile, cfg.Directories.EnrichFile,
		state.WithLockExpiry(cfg.Pipeline.LockExpiry))
	if err != nil {
		return err
	}

	ksCfg := killswitch.Config{
		UnknownHOA: killswitch.UnknownHOAPolicy(cfg.KillSwitch.UnknownHOAPolicy),
		Now:        time.Now,
	}
	scoreCfg := scoring.Config{Now: time.Now}

	rescored := 0

	for _, p := range props {
		_, ok := store.Record(p.FullAddress)
		if !ok {
			continue
		}

		store.UpdateRecord(p.FullAddress, func(rec *property.Record) {
			verdict := killswitch.Evaluate(rec, ksCfg)
			killswitch.Apply(rec, verdict)

			scored := scoring.Score(rec, rec.KillSwitchVerdict, scoreCfg)
			scoring.Apply(rec, scored)
		})

		rescored++
	}

	err = store.Flush()
	if err != nil {
		return err
	}

	err = os.MkdirAll(cfg.Directories.Reports, 0o755)
	if err != nil {
		return fmt.Errorf("create reports directory: %w", err)
	}

	rankedPath := filepath.Join(cfg.Directories.Reports, "ranked.csv")

	ranked, err := os.Create(rankedPath)
	if err != nil {
		return fmt.Errorf("create ranked CSV: %w", err)
	}

	err = report.WriteRanked(ranked, store, props, sc.strict)
	if closeErr := ranked.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "re-scored %d of %d properties, ranked CSV at %s\n",
		rescored, len(props), rankedPath)

	return nil
}
