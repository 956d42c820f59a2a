package core

import (
	"reflect"
	"strings"
	"testing"
)

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		GroupID:     "g1",
		PayerID:     "alice",
		Description: "Dinner",
		Total:       MustParseMoney("42.00"),
		Policy:      PolicyEqual,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{PayerID: "a", Description: "", Total: MustParseMoney("1"), Policy: PolicyEqual},
		{PayerID: "a", Description: strings.Repeat("x", 201), Total: MustParseMoney("1"), Policy: PolicyEqual},
		{PayerID: "a", Description: "d", Total: Zero, Policy: PolicyEqual},
		{PayerID: "", Description: "d", Total: MustParseMoney("1"), Policy: PolicyEqual},
		{PayerID: "a", Description: "d", Total: MustParseMoney("1"), Policy: "SHARES"},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestUserValidate(t *testing.T) {
	if err := (User{Email: "a@example.com", Name: "Alice"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (User{Email: "nope", Name: "Alice"}).Validate(); err != ErrInvalidEmail {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if err := (User{Email: "a@example.com", Name: " "}).Validate(); err != ErrEmptyName {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Veg", "drinker", "veg", "", "Drinker "})
	want := []string{"veg", "drinker"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFoldBalancesAndSummary(t *testing.T) {
	records := []ExpenseRecord{
		{
			Expense: Expense{PayerID: "alice", Total: MustParseMoney("90")},
			Shares: []ExpenseShare{
				{UserID: "alice", Amount: MustParseMoney("30")},
				{UserID: "bob", Amount: MustParseMoney("30")},
				{UserID: "carol", Amount: MustParseMoney("30")},
			},
		},
		{
			Expense: Expense{PayerID: "bob", Total: MustParseMoney("10")},
			Shares: []ExpenseShare{
				{UserID: "carol", Amount: MustParseMoney("10")},
			},
		},
	}
	b := FoldBalances([]UserID{"alice", "bob", "carol", "dave"}, records)
	want := map[UserID]string{"alice": "60.00", "bob": "-20.00", "carol": "-40.00", "dave": "0.00"}
	for u, s := range want {
		if b[u].String() != s {
			t.Fatalf("%s: expected %s, got %s", u, s, b[u])
		}
	}
	if err := b.Imbalance(); err != nil {
		t.Fatalf("expected balanced ledger, got %v", err)
	}

	sum := Summarize("g1", b, records)
	if sum.TotalSpent.String() != "100.00" {
		t.Fatalf("expected total 100.00, got %s", sum.TotalSpent)
	}
	if len(sum.Balances) != 4 || sum.Balances[0].User != "alice" || sum.Balances[3].User != "dave" {
		t.Fatalf("unexpected summary order %+v", sum.Balances)
	}
}
