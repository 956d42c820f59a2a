package core

// BalanceEntry is one member's rounded net position.
type BalanceEntry struct {
	User    UserID `json:"user_id"`
	Balance Money  `json:"balance"`
}

// GroupSummary is a compact view of a group's ledger.
type GroupSummary struct {
	GroupID    string         `json:"group_id"`
	TotalSpent Money          `json:"total_spent"`
	Balances   []BalanceEntry `json:"balances"`
}

// Summarize rounds balances and lists them by user ID.
func Summarize(groupID string, b Balances, records []ExpenseRecord) GroupSummary {
	total := Zero
	for _, r := range records {
		total = total.Add(r.Total)
	}
	entries := make([]BalanceEntry, 0, len(b))
	for _, u := range b.Users() {
		entries = append(entries, BalanceEntry{User: u, Balance: b[u].Round()})
	}
	return GroupSummary{GroupID: groupID, TotalSpent: total.Round(), Balances: entries}
}
