package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"splitsmart/internal/core"
)

type allocateOptions struct {
	total        string
	split        string
	participants string
	members      []string
}

// NewAllocateCommand creates the allocate command.
func NewAllocateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &allocateOptions{}
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Split a total between participants",
		Long: `Split a total with one of the EQUAL, PERCENTAGE, CUSTOM or PREFERENCE
policies. Participants use the same JSON shapes as the API:

  EQUAL       '["alice","bob"]'
  PERCENTAGE  '[{"user_id":"alice","percentage":60},{"user_id":"bob","percentage":40}]'
  CUSTOM      '[{"user_id":"alice","amount":"20.00"},{"user_id":"bob","amount":"10.00"}]'
  PREFERENCE  '{"tags":["veg"]}' together with --member alice:veg --member bob`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAllocate(rootOpts, opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.total, "total", "", "expense total, e.g. 100.00")
	cmd.Flags().StringVar(&opts.split, "split", "equal", "split policy (equal|percentage|custom|preference)")
	cmd.Flags().StringVar(&opts.participants, "participants", "", "participants as JSON")
	cmd.Flags().StringArrayVar(&opts.members, "member", nil, "roster entry user[:tag,tag] for preference splits (repeatable)")
	_ = cmd.MarkFlagRequired("total")
	return cmd
}

func runAllocate(rootOpts *RootOptions, opts *allocateOptions, cmd *cobra.Command) error {
	total, err := core.ParseMoney(opts.total)
	if err != nil {
		return fmt.Errorf("invalid --total: %w", err)
	}
	if err := total.Validate(); err != nil {
		return fmt.Errorf("invalid --total: %w", err)
	}
	kind, err := core.ParsePolicyKind(opts.split)
	if err != nil {
		return err
	}
	policy, err := core.DecodePolicy(kind, json.RawMessage(opts.participants))
	if err != nil {
		return err
	}

	shares, err := core.Allocate(total.Round(), policy, parseRoster(opts.members))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if rootOpts.Format == "json" {
		return writeJSON(out, shares)
	}
	for _, s := range shares {
		fmt.Fprintf(out, "%s\t%s\n", s.User, s.Amount)
	}
	return nil
}

func parseRoster(entries []string) core.Roster {
	roster := make(core.Roster, 0, len(entries))
	for _, e := range entries {
		user, tags, _ := strings.Cut(e, ":")
		var tagList []string
		if tags != "" {
			tagList = core.NormalizeTags(strings.Split(tags, ","))
		}
		roster = append(roster, core.RosterMember{User: core.UserID(strings.TrimSpace(user)), Tags: tagList})
	}
	return roster
}
