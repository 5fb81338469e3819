package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LImboing/hostsim/internal/journal"
)

// traceEvent mirrors a journal row for output.
type traceEvent struct {
	Seq       int64  `json:"seq"`
	Session   string `json:"session"`
	Host      string `json:"host"`
	Source    string `json:"source"`
	QueryType string `json:"query_type"`
	Code      string `json:"code"`
	NumAddrs  int    `json:"num_addrs"`
	FromCache bool   `json:"from_cache"`
}

// traceResult is the payload printed by the trace command.
type traceResult struct {
	Events []traceEvent `json:"events"`
}

func (r traceResult) String() string {
	if len(r.Events) == 0 {
		return "no events"
	}
	var b strings.Builder
	for _, e := range r.Events {
		origin := "rules"
		if e.FromCache {
			origin = "cache"
		}
		fmt.Fprintf(&b, "%6d  %-30s %-8s %-12s %-22s addrs=%d %s\n",
			e.Seq, e.Host, e.Source, e.QueryType, e.Code, e.NumAddrs, origin)
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewTraceCommand prints resolution events recorded in a journal.
func NewTraceCommand(opts *RootOptions) *cobra.Command {
	var (
		session      string
		listSessions bool
	)

	cmd := &cobra.Command{
		Use:   "trace <journal>",
		Short: "Show resolution events from a journal database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			j, err := journal.Open(args[0])
			if err != nil {
				formatter.Error(err.Error())
				return WrapExitError(ExitCommandError, "open journal", err)
			}
			defer j.Close()

			if listSessions {
				sessions, serr := j.Sessions()
				if serr != nil {
					formatter.Error(serr.Error())
					return WrapExitError(ExitFailure, "list sessions", serr)
				}
				if err := formatter.Success(strings.Join(sessions, "\n")); err != nil {
					return WrapExitError(ExitCommandError, "write output", err)
				}
				return nil
			}

			var events []journal.Event
			if session != "" {
				events, err = j.EventsForSession(session)
			} else {
				events, err = j.AllEvents()
			}
			if err != nil {
				formatter.Error(err.Error())
				return WrapExitError(ExitFailure, "read events", err)
			}

			result := traceResult{Events: make([]traceEvent, 0, len(events))}
			for _, e := range events {
				result.Events = append(result.Events, traceEvent(e))
			}
			if err := formatter.Success(result); err != nil {
				return WrapExitError(ExitCommandError, "write output", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "restrict to one recording session")
	cmd.Flags().BoolVar(&listSessions, "sessions", false, "list recorded sessions instead of events")

	return cmd
}
