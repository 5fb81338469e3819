package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LImboing/hostsim/internal/dnstypes"
	"github.com/LImboing/hostsim/internal/journal"
	"github.com/LImboing/hostsim/internal/resolver"
)

// resolveResult is the payload printed after a resolution attempt.
type resolveResult struct {
	Host      string   `json:"host"`
	Addresses []string `json:"addresses,omitempty"`
	Aliases   []string `json:"aliases,omitempty"`
	Code      string   `json:"code"`
	FromRules bool     `json:"from_rules"`
}

func (r resolveResult) String() string {
	if len(r.Addresses) == 0 {
		return fmt.Sprintf("%s: %s", r.Host, r.Code)
	}
	s := fmt.Sprintf("%s: %v", r.Host, r.Addresses)
	if len(r.Aliases) > 0 {
		s += fmt.Sprintf(" (aliases: %v)", r.Aliases)
	}
	return s
}

// NewResolveCommand resolves a single host against a rule file.
func NewResolveCommand(opts *RootOptions) *cobra.Command {
	var (
		rulesPath   string
		queryType   string
		source      string
		port        uint16
		journalPath string
	)

	cmd := &cobra.Command{
		Use:   "resolve <host>",
		Short: "Resolve a host name against a rule file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			file, err := LoadRuleFile(rulesPath)
			if err != nil {
				formatter.Error(err.Error())
				return WrapExitError(ExitCommandError, "load rules", err)
			}

			src, err := dnstypes.ParseSource(source)
			if err != nil {
				formatter.Error(err.Error())
				return WrapExitError(ExitCommandError, "parse source", err)
			}
			qt, err := parseQueryType(queryType)
			if err != nil {
				formatter.Error(err.Error())
				return WrapExitError(ExitCommandError, "parse query type", err)
			}

			options := []resolver.Option{resolver.WithCaching(0)}
			if journalPath != "" {
				j, jerr := journal.Open(journalPath)
				if jerr != nil {
					formatter.Error(jerr.Error())
					return WrapExitError(ExitCommandError, "open journal", jerr)
				}
				defer j.Close()
				options = append(options, resolver.WithRecorder(j))
				formatter.VerboseLog("journal session %s", j.Session())
			}

			res := resolver.New(options...)
			defer res.Close()
			res.SetSynchronousMode(true)

			if err := file.Apply(res.Rules()); err != nil {
				formatter.Error(err.Error())
				return WrapExitError(ExitCommandError, "apply rules", err)
			}
			formatter.VerboseLog("loaded %d rules from %s", len(file.Rules), rulesPath)

			req := res.CreateRequest(
				dnstypes.HostPort{Host: args[0], Port: port},
				"",
				resolver.Parameters{QueryType: qt, Source: src},
			)
			startErr := req.Start(func(error) {})

			result := resolveResult{
				Host:      args[0],
				Code:      dnstypes.CodeOf(startErr).String(),
				FromRules: res.NumNonLocalResolves() > 0,
			}
			if startErr == nil {
				for _, addr := range req.AddressResults().Addrs {
					result.Addresses = append(result.Addresses, addr.String())
				}
				result.Aliases = req.DNSAliasResults()
			}

			if err := formatter.Success(result); err != nil {
				return WrapExitError(ExitCommandError, "write output", err)
			}
			if startErr != nil {
				return NewExitError(ExitFailure, result.Code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "path to YAML rule file (required)")
	cmd.Flags().StringVar(&queryType, "qtype", "", "query type (a|aaaa), empty for unspecified")
	cmd.Flags().StringVar(&source, "source", "any", "resolution source (any|system|dns|mdns|local-only)")
	cmd.Flags().Uint16Var(&port, "port", 0, "port recorded with the request")
	cmd.Flags().StringVar(&journalPath, "journal", defaultJournalPath(), "path to SQLite journal, empty to disable")
	cmd.MarkFlagRequired("rules")

	return cmd
}

func parseQueryType(s string) (dnstypes.QueryType, error) {
	switch s {
	case "", "unspecified":
		return dnstypes.QueryTypeUnspecified, nil
	case "a":
		return dnstypes.QueryTypeA, nil
	case "aaaa":
		return dnstypes.QueryTypeAAAA, nil
	default:
		return dnstypes.QueryTypeUnspecified, fmt.Errorf("unknown query type %q", s)
	}
}

func defaultJournalPath() string {
	if p := os.Getenv("HOSTSIM_JOURNAL"); p != "" {
		return p
	}
	return ""
}
