package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// validateResult is the payload printed after a rule file check.
type validateResult struct {
	Path  string `json:"path"`
	Rules int    `json:"rules"`
	Valid bool   `json:"valid"`
}

func (r validateResult) String() string {
	return fmt.Sprintf("%s: %d rules, valid", r.Path, r.Rules)
}

// NewValidateCommand checks a rule file against the schema without
// resolving anything.
func NewValidateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <rule-file>",
		Short: "Validate a YAML rule file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			file, err := LoadRuleFile(args[0])
			if err != nil {
				formatter.Error(err.Error())
				return WrapExitError(ExitFailure, "invalid rule file", err)
			}

			result := validateResult{Path: args[0], Rules: len(file.Rules), Valid: true}
			if err := formatter.Success(result); err != nil {
				return WrapExitError(ExitCommandError, "write output", err)
			}
			return nil
		},
	}
	return cmd
}
