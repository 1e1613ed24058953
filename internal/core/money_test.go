package core

import (
	"errors"
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"12.34", 1234, true},
		{"12,34", 1234, true},
		{"1", 100, true},
		{"0", 0, true},
		{"0.01", 1, true},
		{" 2.50 ", 250, true},
		{"12.345", 1235, true}, // rounds half away from zero
		{"12.344", 1234, true},
		{"-5", -500, true},
		{"-0.5", -50, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"   ", 0, false},
		{"12€", 0, false},
		{"99999999999999999999", 0, false},
		{"1e6", 100000000, true},
		{"1E-2", 1, true},
		{"1e30", 0, false},
		{"1e999999999", 0, false},
		{"-1e999999999", 0, false},
		{"1e-999999999", 0, false},
		{"10000000000000.01", 0, false}, // one cent above the bound
		{"9999999999999.99", 999999999999999, true},
		{"-10000000000000", -MaxAmountCents, true},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
			}
		}
	}
}

func TestParseMoney_RejectsNegative(t *testing.T) {
	if _, err := ParseMoney("-1"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	m, err := ParseMoney("15,99")
	if err != nil || m.Cents != 1599 {
		t.Fatalf("expected 1599, got %d (err=%v)", m.Cents, err)
	}
}

func TestParseMoney_Bounds(t *testing.T) {
	m, err := ParseMoney("10000000000000")
	if err != nil || m.Cents != MaxAmountCents {
		t.Fatalf("expected the bound itself to be accepted, got %d (err=%v)", m.Cents, err)
	}
	if err := (Money{Cents: MaxAmountCents + 1}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount above the bound, got %v", err)
	}
}

func TestAddCents(t *testing.T) {
	cases := []struct {
		a, b    int64
		want    int64
		wantErr bool
	}{
		{1, 2, 3, false},
		{-5, 3, -2, false},
		{math.MaxInt64, 0, math.MaxInt64, false},
		{math.MaxInt64, 1, 0, true},
		{math.MinInt64, -1, 0, true},
		{math.MinInt64, math.MaxInt64, -1, false},
	}
	for _, tc := range cases {
		got, err := AddCents(tc.a, tc.b)
		if tc.wantErr {
			if !errors.Is(err, ErrAmountOverflow) {
				t.Errorf("AddCents(%d, %d) expected ErrAmountOverflow, got %d, %v", tc.a, tc.b, got, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("AddCents(%d, %d) = %d, %v; want %d", tc.a, tc.b, got, err, tc.want)
		}
	}
}

func TestFormatCents(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{1234, "12.34€"},
		{-50, "-0.50€"},
		{0, "0.00€"},
		{5, "0.05€"},
		{100, "1.00€"},
		{-123456, "-1234.56€"},
		{math.MinInt64, "-92233720368547758.08€"},
	}
	for _, tc := range cases {
		if got := FormatCents(tc.in); got != tc.want {
			t.Errorf("FormatCents(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, in := range []string{"12.34", "0.05", "1000.00", "-7.10"} {
		cents, err := ParseAmount(in)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", in, err)
		}
		if got := FormatCentsWith(cents, ""); got != in {
			t.Errorf("round trip %q -> %d -> %q", in, cents, got)
		}
	}
}
