package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	PolicyEqual      PolicyKind = "EQUAL"
	PolicyPercentage PolicyKind = "PERCENTAGE"
	PolicyCustom     PolicyKind = "CUSTOM"
	PolicyPreference PolicyKind = "PREFERENCE"
)

// ErrInvalidInput marks every allocation request that cannot be satisfied.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError carries a human readable reason and matches ErrInvalidInput.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string { return e.Reason }

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

func invalidInput(format string, args ...any) error {
	return &InvalidInputError{Reason: fmt.Sprintf(format, args...)}
}

// PolicyKind names a split policy on the wire and in storage.
type PolicyKind string

// ParsePolicyKind accepts any letter case.
func ParsePolicyKind(s string) (PolicyKind, error) {
	k := PolicyKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", invalidInput("invalid split type: %s", s)
	}
	return k, nil
}

func (k PolicyKind) IsValid() bool {
	switch k {
	case PolicyEqual, PolicyPercentage, PolicyCustom, PolicyPreference:
		return true
	default:
		return false
	}
}

func (k PolicyKind) String() string { return string(k) }

type (
	// SplitPolicy is one of Equal, Percentage, Custom or Preference.
	// Each variant carries only the data its allocation needs.
	SplitPolicy interface {
		Kind() PolicyKind
		isSplitPolicy()
	}

	// Equal divides the total evenly across Participants.
	Equal struct {
		Participants []UserID
	}

	// Percentage assigns each participant a percentage of the total.
	Percentage struct {
		Shares []PercentShare
	}

	PercentShare struct {
		User    UserID
		Percent decimal.Decimal
	}

	// Custom assigns fixed amounts which must add up to the total.
	Custom struct {
		Shares []FixedShare
	}

	FixedShare struct {
		User   UserID
		Amount Money
	}

	// Preference divides the total evenly across every roster member
	// whose tags include all of Tags.
	Preference struct {
		Tags []string
	}

	RosterMember struct {
		User UserID
		Tags []string
	}

	// Roster is the full membership of a group, in a stable order.
	Roster []RosterMember

	Share struct {
		User   UserID `json:"user_id"`
		Amount Money  `json:"amount"`
	}

	// ShareResult lists shares in the iteration order of the policy that produced them.
	ShareResult []Share
)

func (Equal) Kind() PolicyKind      { return PolicyEqual }
func (Percentage) Kind() PolicyKind { return PolicyPercentage }
func (Custom) Kind() PolicyKind     { return PolicyCustom }
func (Preference) Kind() PolicyKind { return PolicyPreference }

func (Equal) isSplitPolicy()      {}
func (Percentage) isSplitPolicy() {}
func (Custom) isSplitPolicy()     {}
func (Preference) isSplitPolicy() {}

// Allocate splits total according to policy. roster is only consulted by
// Preference. On success the shares sum to total rounded to cents; any
// rounding residual is absorbed by the last share.
func Allocate(total Money, policy SplitPolicy, roster Roster) (ShareResult, error) {
	var (
		shares ShareResult
		err    error
	)
	switch p := policy.(type) {
	case Equal:
		shares, err = allocateEqual(total, p)
	case Percentage:
		shares, err = allocatePercentage(total, p)
	case Custom:
		shares, err = allocateCustom(total, p)
	case Preference:
		shares, err = allocatePreference(total, p, roster)
	case nil:
		return nil, invalidInput("missing split policy")
	default:
		return nil, invalidInput("invalid split type: %T", policy)
	}
	if err != nil {
		return nil, err
	}
	if err := checkDistinct(shares); err != nil {
		return nil, err
	}
	correctResidual(total, shares)
	return shares, nil
}

func allocateEqual(total Money, p Equal) (ShareResult, error) {
	n := len(p.Participants)
	if n == 0 {
		return nil, invalidInput("at least one participant is required for an equal split")
	}
	each := total.d.Div(decimal.NewFromInt(int64(n))).Round(CentPlaces)
	shares := make(ShareResult, 0, n)
	for _, u := range p.Participants {
		shares = append(shares, Share{User: u, Amount: Money{d: each}})
	}
	return shares, nil
}

func allocatePercentage(total Money, p Percentage) (ShareResult, error) {
	sum := decimal.Zero
	for _, s := range p.Shares {
		if s.Percent.Sign() < 0 {
			return nil, invalidInput("percentage for %s cannot be negative", s.User)
		}
		sum = sum.Add(s.Percent)
	}
	if !sum.Equal(hundred) {
		return nil, invalidInput("percentages must add up to 100, got %s", sum.String())
	}
	shares := make(ShareResult, 0, len(p.Shares))
	for _, s := range p.Shares {
		amount := total.d.Mul(s.Percent).Div(hundred).Round(CentPlaces)
		shares = append(shares, Share{User: s.User, Amount: Money{d: amount}})
	}
	return shares, nil
}

func allocateCustom(total Money, p Custom) (ShareResult, error) {
	sum := decimal.Zero
	for _, s := range p.Shares {
		if s.Amount.Sign() < 0 {
			return nil, invalidInput("custom amount for %s cannot be negative", s.User)
		}
		if !s.Amount.d.Equal(s.Amount.d.Round(CentPlaces)) {
			return nil, invalidInput("custom amount for %s has more than two decimal places", s.User)
		}
		sum = sum.Add(s.Amount.d)
	}
	if !sum.Round(CentPlaces).Equal(total.d.Round(CentPlaces)) {
		return nil, invalidInput("custom amounts must sum to the total expense amount (%s != %s)",
			sum.StringFixed(CentPlaces), total.String())
	}
	shares := make(ShareResult, 0, len(p.Shares))
	for _, s := range p.Shares {
		shares = append(shares, Share{User: s.User, Amount: s.Amount})
	}
	return shares, nil
}

func allocatePreference(total Money, p Preference, roster Roster) (ShareResult, error) {
	var eligible []UserID
	for _, m := range roster {
		if hasAllTags(m.Tags, p.Tags) {
			eligible = append(eligible, m.User)
		}
	}
	if len(eligible) == 0 {
		return nil, invalidInput("no users match the specified preferences")
	}
	return allocateEqual(total, Equal{Participants: eligible})
}

func hasAllTags(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

func checkDistinct(shares ShareResult) error {
	seen := make(map[UserID]struct{}, len(shares))
	for _, s := range shares {
		if _, ok := seen[s.User]; ok {
			return invalidInput("participant %s listed more than once", s.User)
		}
		seen[s.User] = struct{}{}
	}
	return nil
}

// correctResidual adds round(total - sum, 2) to the last share when the
// rounded sum of shares misses the rounded total.
func correctResidual(total Money, shares ShareResult) {
	if len(shares) == 0 {
		return
	}
	sum := shares.Total().d
	if sum.Round(CentPlaces).Equal(total.d.Round(CentPlaces)) {
		return
	}
	diff := total.d.Sub(sum).Round(CentPlaces)
	last := &shares[len(shares)-1]
	last.Amount = Money{d: last.Amount.d.Add(diff)}
}

// Total sums the shares without rounding.
func (r ShareResult) Total() Money {
	sum := decimal.Zero
	for _, s := range r {
		sum = sum.Add(s.Amount.d)
	}
	return Money{d: sum}
}

// Get returns the share of user, if any.
func (r ShareResult) Get(user UserID) (Money, bool) {
	for _, s := range r {
		if s.User == user {
			return s.Amount, true
		}
	}
	return Zero, false
}
