package core

import (
	"encoding/json"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"1.0", "1.00", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"-12.5", "-12.50", true},
		{"+3", "3.00", true},
		{" 2.50 ", "2.50", true},
		{"1.005", "1.01", true}, // rounds half away from zero for display
		{"--1", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"", "", false},
		{"-", "", false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyCentsAndRound(t *testing.T) {
	if c := MustParseMoney("12.345").Cents(); c != 1235 {
		t.Fatalf("expected 1235 cents, got %d", c)
	}
	if c := MustParseMoney("-0.005").Cents(); c != -1 {
		t.Fatalf("expected -1 cent, got %d", c)
	}
	if !MoneyFromCents(3334).Equal(MustParseMoney("33.34")) {
		t.Fatalf("MoneyFromCents mismatch")
	}
	if got := NewMoney(0.1).Add(NewMoney(0.2)); !got.Equal(MustParseMoney("0.3")) {
		t.Fatalf("expected exact 0.3, got %s", got.Exact())
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := MustParseMoney("0.01").Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for _, s := range []string{"0", "0.004", "-1"} {
		if err := MustParseMoney(s).Validate(); err == nil {
			t.Fatalf("%s: expected error", s)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Money `json:"a"`
	}{A: MustParseMoney("33.3333")})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"a":"33.33"}` {
		t.Fatalf("unexpected json %s", b)
	}

	var in struct {
		N Money `json:"n"`
		S Money `json:"s"`
	}
	if err := json.Unmarshal([]byte(`{"n": 12.5, "s": "7.25"}`), &in); err != nil {
		t.Fatal(err)
	}
	if in.N.String() != "12.50" || in.S.String() != "7.25" {
		t.Fatalf("unexpected decode %s %s", in.N, in.S)
	}
	if err := json.Unmarshal([]byte(`{"n": "twelve"}`), &in); err == nil {
		t.Fatalf("expected error for non numeric amount")
	}
}
