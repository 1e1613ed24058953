package bot

import (
	"errors"
	"reflect"
	"testing"

	"budgetbot/internal/core"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in     string
		want   Command
		wantOK bool
	}{
		{"/sub add 12.99 5 Netflix Premium", Command{Name: "sub", Action: "add", Args: []string{"12.99", "5", "Netflix", "Premium"}}, true},
		{"/SUB@BudgetBot LIST", Command{Name: "sub", Action: "list", Args: []string{}}, true},
		{"/reste", Command{Name: "reste", Args: []string{}}, true},
		{"/reste now", Command{Name: "reste", Args: []string{"now"}}, true},
		{"/bank", Command{Name: "bank", Args: []string{}}, true},
		{"  /pay   done  #4 ", Command{Name: "pay", Action: "done", Args: []string{"#4"}}, true},
		{"hello", Command{}, false},
		{"/", Command{}, false},
		{"", Command{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCommand(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ParseCommand(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseSubscriptionArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    SubscriptionArgs
		wantErr error
	}{
		{"valid", []string{"15,99", "5", "Netflix"}, SubscriptionArgs{core.Money{Cents: 1599}, 5, "Netflix"}, nil},
		{"name with spaces", []string{"9", "28", "Disney", "Plus"}, SubscriptionArgs{core.Money{Cents: 900}, 28, "Disney Plus"}, nil},
		{"missing name", []string{"9", "28"}, SubscriptionArgs{}, errUsage},
		{"bad amount", []string{"nine", "28", "X"}, SubscriptionArgs{}, core.ErrInvalidAmount},
		{"negative amount", []string{"-9", "28", "X"}, SubscriptionArgs{}, core.ErrInvalidAmount},
		{"day 29", []string{"9", "29", "X"}, SubscriptionArgs{}, core.ErrInvalidDay},
		{"day not a number", []string{"9", "fifth", "X"}, SubscriptionArgs{}, core.ErrInvalidDay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSubscriptionArgs(tt.args)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseExpenseArgs(t *testing.T) {
	got, err := ParseExpenseArgs([]string{"800", "2025-10-20", "Rent"})
	if err != nil {
		t.Fatalf("ParseExpenseArgs: %v", err)
	}
	if got.Amount.Cents != 80000 || got.DueDate.String() != "2025-10-20" || got.Name != "Rent" {
		t.Errorf("unexpected %+v", got)
	}

	for _, args := range [][]string{
		{"800", "2025-02-30", "Rent"},
		{"800", "20/10/2025", "Rent"},
	} {
		if _, err := ParseExpenseArgs(args); !errors.Is(err, core.ErrInvalidDate) {
			t.Errorf("ParseExpenseArgs(%v) error = %v, want ErrInvalidDate", args, err)
		}
	}
	if _, err := ParseExpenseArgs([]string{"800"}); !errors.Is(err, errUsage) {
		t.Errorf("expected usage error, got %v", err)
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		args    []string
		want    int64
		wantErr bool
	}{
		{[]string{"12"}, 12, false},
		{[]string{"#12"}, 12, false},
		{[]string{"0"}, 0, true},
		{[]string{"x"}, 0, true},
		{[]string{}, 0, true},
		{[]string{"1", "2"}, 0, true},
	}
	for _, tt := range tests {
		got, err := ParseID(tt.args)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseID(%v) = %d, %v", tt.args, got, err)
		}
	}
}

func TestParseSignedAmount(t *testing.T) {
	got, err := ParseSignedAmount([]string{"-25.50"})
	if err != nil || got != -2550 {
		t.Fatalf("ParseSignedAmount(-25.50) = %d, %v", got, err)
	}
	if _, err := ParseSignedAmount(nil); !errors.Is(err, errUsage) {
		t.Errorf("expected usage error, got %v", err)
	}
}
