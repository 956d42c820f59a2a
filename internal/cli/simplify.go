package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"splitsmart/internal/core"
)

// NewSimplifyCommand creates the simplify command.
func NewSimplifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simplify <user=balance>...",
		Short: "Turn net balances into a short list of payments",
		Long: `Compute a settlement plan from net balances. Positive balances are owed
money, negative balances owe money; the balances must net to zero.

  splitctl simplify alice=60 bob=-15 carol=-45`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimplify(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runSimplify(rootOpts *RootOptions, args []string, cmd *cobra.Command) error {
	balances, err := parseBalances(args)
	if err != nil {
		return err
	}
	if err := balances.Imbalance(); err != nil {
		return err
	}

	txs := core.Simplify(balances)
	out := cmd.OutOrStdout()
	if rootOpts.Format == "json" {
		if txs == nil {
			txs = []core.Transaction{}
		}
		return writeJSON(out, txs)
	}
	if len(txs) == 0 {
		fmt.Fprintln(out, "already settled")
		return nil
	}
	for _, t := range txs {
		fmt.Fprintf(out, "%s -> %s: %s\n", t.From, t.To, t.Amount)
	}
	return nil
}

func parseBalances(args []string) (core.Balances, error) {
	balances := make(core.Balances, len(args))
	for _, arg := range args {
		user, amount, ok := strings.Cut(arg, "=")
		user = strings.TrimSpace(user)
		if !ok || user == "" {
			return nil, fmt.Errorf("invalid balance %q: want user=amount", arg)
		}
		m, err := core.ParseMoney(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid balance %q: %w", arg, err)
		}
		id := core.UserID(user)
		if _, dup := balances[id]; dup {
			return nil, fmt.Errorf("duplicate balance for %s", user)
		}
		balances[id] = m
	}
	return balances, nil
}
