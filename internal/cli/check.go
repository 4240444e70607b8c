package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/breakerguard/internal/logging"
	"github.com/ppiankov/breakerguard/internal/runner"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate exposure once and print the verdict",
	Long: "Runs the auth file, listener and probe checks once and prints the\n" +
		"verdict as JSON. The circuit is never opened and nothing is recorded.\n\n" +
		"Exit code 0 if healthy, 2 if exposed.",
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, nil)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{Stdout: cmd.ErrOrStderr(), Verbose: cfg.Verbose})
	if err != nil {
		return err
	}
	defer logger.Close()

	r := runner.New(runner.WithTimeout(cfg.CommandTimeout))
	verdict := newEvaluator(cfg, r, logger.Logger).Evaluate(cmd.Context())

	out, err := json.MarshalIndent(verdict, "", "  ")
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if verdict.Exposed {
		return &exitError{code: exitExposed}
	}
	return nil
}
