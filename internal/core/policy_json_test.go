package core

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestDecodePolicy(t *testing.T) {
	tests := []struct {
		name    string
		kind    PolicyKind
		raw     string
		want    SplitPolicy
		wantErr bool
	}{
		{
			name: "equal",
			kind: PolicyEqual,
			raw:  `["a","b"]`,
			want: Equal{Participants: []UserID{"a", "b"}},
		},
		{
			name:    "equal wrong shape",
			kind:    PolicyEqual,
			raw:     `{"a":1}`,
			wantErr: true,
		},
		{
			name:    "equal missing",
			kind:    PolicyEqual,
			raw:     ``,
			wantErr: true,
		},
		{
			name: "preference object",
			kind: PolicyPreference,
			raw:  `{"tags":["Veg"," drinker "]}`,
			want: Preference{Tags: []string{"veg", "drinker"}},
		},
		{
			name: "preference list",
			kind: PolicyPreference,
			raw:  `["veg"]`,
			want: Preference{Tags: []string{"veg"}},
		},
		{
			name: "preference without tags",
			kind: PolicyPreference,
			raw:  `null`,
			want: Preference{},
		},
		{
			name:    "percentage missing value",
			kind:    PolicyPercentage,
			raw:     `[{"user_id":"a"}]`,
			wantErr: true,
		},
		{
			name:    "custom bad amount",
			kind:    PolicyCustom,
			raw:     `[{"user_id":"a","amount":"12x"}]`,
			wantErr: true,
		},
		{
			name:    "unknown kind",
			kind:    PolicyKind("RANDOM"),
			raw:     `[]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePolicy(tt.kind, json.RawMessage(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("DecodePolicy() error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodePolicy() unexpected error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodePolicy() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodePolicy_NumbersAndStrings(t *testing.T) {
	p, err := DecodePolicy(PolicyPercentage, json.RawMessage(`[{"user_id":"a","percentage":60},{"user_id":"b","percentage":"40"}]`))
	if err != nil {
		t.Fatalf("DecodePolicy() error = %v", err)
	}
	shares, err := Allocate(MustParseMoney("250"), p, nil)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if shares[0].Amount.String() != "150.00" || shares[1].Amount.String() != "100.00" {
		t.Errorf("Allocate() = %+v", shares)
	}

	c, err := DecodePolicy(PolicyCustom, json.RawMessage(`[{"user_id":"a","amount":20.5},{"user_id":"b","amount":"29.50"}]`))
	if err != nil {
		t.Fatalf("DecodePolicy() error = %v", err)
	}
	if got := PolicyUsers(c); !reflect.DeepEqual(got, []UserID{"a", "b"}) {
		t.Errorf("PolicyUsers() = %v", got)
	}
	if PolicyTags(c) != nil {
		t.Errorf("PolicyTags() on custom should be nil")
	}
}
