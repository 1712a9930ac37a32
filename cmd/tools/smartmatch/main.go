// cmd/tools/smartmatch/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"investlink-workers/internal/common/logger"
	"investlink-workers/internal/common/scoring"
	"investlink-workers/internal/matching"
	"investlink-workers/internal/models"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type options struct {
	investorFile string
	startupFile  string
	scoringURL   string
	timeout      time.Duration
	verbose      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	v := viper.New()
	v.SetEnvPrefix("SCORING")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "smartmatch",
		Short: "Score one investor/startup pair against the scoring service",
		Example: `  smartmatch --investor investor.json --startup startup.json --scoring-url http://localhost:8000
  SCORING_BASE_URL=http://localhost:8000 smartmatch --investor investor.json --startup startup.json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.scoringURL == "" {
				opts.scoringURL = v.GetString("base_url")
			}
			return run(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.investorFile, "investor", "", "investor profile JSON file (- for stdin)")
	f.StringVar(&opts.startupFile, "startup", "", "startup profile JSON file")
	f.StringVar(&opts.scoringURL, "scoring-url", "", "scoring service base url (default $SCORING_BASE_URL)")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall timeout")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log scoring calls to stderr")
	_ = cmd.MarkFlagRequired("investor")
	_ = cmd.MarkFlagRequired("startup")
	return cmd
}

func run(ctx context.Context, opts *options, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.scoringURL == "" {
		return fmt.Errorf("--scoring-url or SCORING_BASE_URL is required")
	}

	rawInvestor, err := readProfile(opts.investorFile)
	if err != nil {
		return err
	}
	rawStartup, err := readProfile(opts.startupFile)
	if err != nil {
		return err
	}
	investor, err := matching.NormalizeInvestor(rawInvestor)
	if err != nil {
		return fmt.Errorf("investor profile: %w", err)
	}
	startup, err := matching.NormalizeStartup(rawStartup)
	if err != nil {
		return fmt.Errorf("startup profile: %w", err)
	}

	log := logger.NewNoOpLogger()
	if opts.verbose {
		log = logger.NewZapAdapter(logger.New("debug", "console"))
	}

	client, err := scoring.NewClient(scoring.Config{BaseURL: opts.scoringURL, Timeout: opts.timeout}, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	result, err := matching.NewMatcher(client, log).GetSmartMatch(ctx, investor, startup)
	if err != nil {
		return fmt.Errorf("smart match failed: %w", err)
	}

	if opts.verbose {
		fmt.Fprintf(stderr, "%s %s startup: %s match (%d%%), %s\n", startup.Stage, startup.Sector,
			strings.ToUpper(string(result.RecommendationStrength)), matching.Percent(result.ConfidenceScore), result.SuggestionType)
	}
	return writeResult(stdout, result)
}

func readProfile(path string) (map[string]interface{}, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return raw, nil
}

func writeResult(w io.Writer, result *models.MatchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
