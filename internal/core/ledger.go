package core

// FoldBalances nets a group's expenses into per-person balances. Every
// member starts at zero; each expense credits its payer with the total and
// debits every share holder with their share.
func FoldBalances(members []UserID, records []ExpenseRecord) Balances {
	b := make(Balances, len(members))
	for _, m := range members {
		b[m] = Zero
	}
	for _, r := range records {
		b[r.PayerID] = b[r.PayerID].Add(r.Total)
		for _, s := range r.Shares {
			b[s.UserID] = b[s.UserID].Sub(s.Amount)
		}
	}
	return b
}

// RosterFromMembers builds the allocation roster from group members, preserving order.
func RosterFromMembers(members []Member) Roster {
	roster := make(Roster, 0, len(members))
	for _, m := range members {
		roster = append(roster, RosterMember{User: m.UserID, Tags: m.Tags})
	}
	return roster
}

// SharesFor converts an allocation into persisted share rows.
func SharesFor(expenseID string, result ShareResult) []ExpenseShare {
	shares := make([]ExpenseShare, 0, len(result))
	for _, s := range result {
		shares = append(shares, ExpenseShare{ExpenseID: expenseID, UserID: s.User, Amount: s.Amount})
	}
	return shares
}
