package core

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrUnbalanced is reported when balances do not net to zero.
var ErrUnbalanced = errors.New("balances do not sum to zero")

// Balances maps each person to their net position: positive is owed money,
// negative owes money.
type Balances map[UserID]Money

// Transaction is a single payment from a debtor to a creditor.
type Transaction struct {
	From   UserID `json:"from"`
	To     UserID `json:"to"`
	Amount Money  `json:"amount"`
}

type position struct {
	user   UserID
	amount decimal.Decimal
}

// Simplify derives a settlement plan with a greedy largest-pair strategy.
//
// Creditors are walked from largest to smallest, debtors from most negative
// to least; ties are broken by user ID so the output is deterministic. Each
// step settles min(credit, debt) and advances whichever side reaches zero.
// Balances are rounded to cents first (see Rounded), so every step zeroes at
// least one side.
//
// The result is not guaranteed to be the minimum number of transactions
// (that problem is NP-hard), but it is optimal when one creditor or debtor
// dominates. Input that does not net to zero is accepted; whatever cannot be
// matched is left unsettled. Use Imbalance to reject such input up front.
func Simplify(b Balances) []Transaction {
	var creditors, debtors []position
	for u, m := range b.Rounded() {
		v := m.d
		switch v.Sign() {
		case 1:
			creditors = append(creditors, position{user: u, amount: v})
		case -1:
			debtors = append(debtors, position{user: u, amount: v})
		}
	}

	sort.Slice(creditors, func(i, j int) bool {
		if c := creditors[i].amount.Cmp(creditors[j].amount); c != 0 {
			return c > 0
		}
		return creditors[i].user < creditors[j].user
	})
	sort.Slice(debtors, func(i, j int) bool {
		if c := debtors[i].amount.Cmp(debtors[j].amount); c != 0 {
			return c < 0
		}
		return debtors[i].user < debtors[j].user
	})

	var txs []Transaction
	ci, di := 0, 0
	for ci < len(creditors) && di < len(debtors) {
		c := &creditors[ci]
		d := &debtors[di]

		amount := decimal.Min(c.amount, d.amount.Neg()).Round(CentPlaces)
		if amount.Sign() > 0 {
			txs = append(txs, Transaction{From: d.user, To: c.user, Amount: Money{d: amount}})
		}

		c.amount = c.amount.Sub(amount).Round(CentPlaces)
		d.amount = d.amount.Add(amount).Round(CentPlaces)

		if c.amount.IsZero() {
			ci++
		}
		if d.amount.IsZero() {
			di++
		}
	}
	return txs
}

// Sum adds every balance without rounding.
func (b Balances) Sum() Money {
	sum := decimal.Zero
	for _, m := range b {
		sum = sum.Add(m.d)
	}
	return Money{d: sum}
}

// Imbalance returns ErrUnbalanced when the exact sum of the balances is
// at least half a cent away from zero. Residue left by rounding individual
// balances is tolerated; Simplify leaves it unsettled.
func (b Balances) Imbalance() error {
	sum := b.Sum().d.Round(CentPlaces)
	if !sum.IsZero() {
		return fmt.Errorf("%w: residual %s", ErrUnbalanced, sum.StringFixed(CentPlaces))
	}
	return nil
}

// Rounded returns a copy with every balance rounded to cents. The rounded
// balances add up to the exact sum rounded to cents: whatever rounding each
// entry alone loses is pushed onto the largest balance by magnitude, the
// lowest user ID winning ties.
func (b Balances) Rounded() Balances {
	out := make(Balances, len(b))
	exact, rounded := decimal.Zero, decimal.Zero
	var anchor UserID
	anchorAbs := decimal.NewFromInt(-1)
	for _, u := range b.Users() {
		v := b[u].d
		r := v.Round(CentPlaces)
		out[u] = Money{d: r}
		exact = exact.Add(v)
		rounded = rounded.Add(r)
		if v.Abs().Cmp(anchorAbs) > 0 {
			anchor, anchorAbs = u, v.Abs()
		}
	}
	if diff := exact.Round(CentPlaces).Sub(rounded); !diff.IsZero() {
		out[anchor] = Money{d: out[anchor].d.Add(diff)}
	}
	return out
}

// Users returns the user IDs in ascending order.
func (b Balances) Users() []UserID {
	users := make([]UserID, 0, len(b))
	for u := range b {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

// Apply settles txs against a rounded copy of b: the payer's debt shrinks
// and the payee's credit shrinks by each amount.
func Apply(b Balances, txs []Transaction) Balances {
	out := b.Rounded()
	for _, t := range txs {
		out[t.From] = out[t.From].Add(t.Amount)
		out[t.To] = out[t.To].Sub(t.Amount)
	}
	return out
}
