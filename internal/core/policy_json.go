package core

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

type percentEntry struct {
	User    UserID           `json:"user_id"`
	Percent *decimal.Decimal `json:"percentage"`
}

type amountEntry struct {
	User   UserID `json:"user_id"`
	Amount *Money `json:"amount"`
}

type preferenceEntry struct {
	Tags []string `json:"tags"`
}

// DecodePolicy builds the policy of kind from its participants payload:
//
//	EQUAL       ["u1", "u2"]
//	PERCENTAGE  [{"user_id": "u1", "percentage": 60}, ...]
//	CUSTOM      [{"user_id": "u1", "amount": "20.00"}, ...]
//	PREFERENCE  {"tags": ["veg"]} or ["veg"]
func DecodePolicy(kind PolicyKind, raw json.RawMessage) (SplitPolicy, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if kind == PolicyPreference {
			return Preference{}, nil
		}
		return nil, invalidInput("participants are required for a %s split", kind)
	}

	switch kind {
	case PolicyEqual:
		var users []UserID
		if err := json.Unmarshal(raw, &users); err != nil {
			return nil, invalidInput("participants must be a list of user ids")
		}
		return Equal{Participants: users}, nil

	case PolicyPercentage:
		var entries []percentEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, invalidInput("participants must be a list of {user_id, percentage}")
		}
		p := Percentage{Shares: make([]PercentShare, 0, len(entries))}
		for _, e := range entries {
			if e.User == "" || e.Percent == nil {
				return nil, invalidInput("every participant needs user_id and percentage")
			}
			p.Shares = append(p.Shares, PercentShare{User: e.User, Percent: *e.Percent})
		}
		return p, nil

	case PolicyCustom:
		var entries []amountEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, invalidInput("participants must be a list of {user_id, amount}")
		}
		c := Custom{Shares: make([]FixedShare, 0, len(entries))}
		for _, e := range entries {
			if e.User == "" || e.Amount == nil {
				return nil, invalidInput("every participant needs user_id and amount")
			}
			c.Shares = append(c.Shares, FixedShare{User: e.User, Amount: *e.Amount})
		}
		return c, nil

	case PolicyPreference:
		if raw[0] == '[' {
			var tags []string
			if err := json.Unmarshal(raw, &tags); err != nil {
				return nil, invalidInput("preference tags must be a list of strings")
			}
			return Preference{Tags: NormalizeTags(tags)}, nil
		}
		var e preferenceEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, invalidInput("participants must be {\"tags\": [...]} for a preference split")
		}
		return Preference{Tags: NormalizeTags(e.Tags)}, nil

	default:
		return nil, invalidInput("invalid split type: %s", kind)
	}
}

// PolicyUsers lists the users a policy names explicitly. Preference names none.
func PolicyUsers(p SplitPolicy) []UserID {
	var users []UserID
	switch p := p.(type) {
	case Equal:
		users = append(users, p.Participants...)
	case Percentage:
		for _, s := range p.Shares {
			users = append(users, s.User)
		}
	case Custom:
		for _, s := range p.Shares {
			users = append(users, s.User)
		}
	}
	return users
}

// PolicyTags returns the required tags of a Preference policy.
func PolicyTags(p SplitPolicy) []string {
	if pref, ok := p.(Preference); ok {
		return pref.Tags
	}
	return nil
}
