package bot

import (
	"errors"
	"strconv"
	"strings"

	"budgetbot/internal/core"
)

// Command is a parsed chat command: "/sub add 12.99 5 Netflix" becomes
// {Name: "sub", Action: "add", Args: ["12.99", "5", "Netflix"]}.
type Command struct {
	Name   string
	Action string
	Args   []string
}

// errUsage means the command was understood but its arguments were not.
var errUsage = errors.New("usage")

// ParseCommand splits a message into a command. Text that is not a command
// returns ok=false. A "@BotName" suffix on the command is dropped.
func ParseCommand(text string) (Command, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return Command{}, false
	}

	cmd := Command{Name: strings.ToLower(name)}
	rest := fields[1:]
	if hasActions(cmd.Name) && len(rest) > 0 {
		cmd.Action = strings.ToLower(rest[0])
		rest = rest[1:]
	}
	cmd.Args = rest
	return cmd, true
}

func hasActions(name string) bool {
	switch name {
	case "sub", "pay", "bank", "reminder":
		return true
	}
	return false
}

// SubscriptionArgs is "/sub add <amount> <day> <name...>".
type SubscriptionArgs struct {
	Amount     core.Money
	DayOfMonth int
	Name       string
}

func ParseSubscriptionArgs(args []string) (SubscriptionArgs, error) {
	if len(args) < 3 {
		return SubscriptionArgs{}, errUsage
	}
	amount, err := core.ParseMoney(args[0])
	if err != nil {
		return SubscriptionArgs{}, err
	}
	day, err := strconv.Atoi(args[1])
	if err != nil || day < 1 || day > core.MaxDayOfMonth {
		return SubscriptionArgs{}, core.ErrInvalidDay
	}
	return SubscriptionArgs{
		Amount:     amount,
		DayOfMonth: day,
		Name:       strings.Join(args[2:], " "),
	}, nil
}

// ExpenseArgs is "/pay add <amount> <YYYY-MM-DD> <name...>".
type ExpenseArgs struct {
	Amount  core.Money
	DueDate core.Date
	Name    string
}

func ParseExpenseArgs(args []string) (ExpenseArgs, error) {
	if len(args) < 3 {
		return ExpenseArgs{}, errUsage
	}
	amount, err := core.ParseMoney(args[0])
	if err != nil {
		return ExpenseArgs{}, err
	}
	due, err := core.ParseDueDate(args[1])
	if err != nil {
		return ExpenseArgs{}, err
	}
	return ExpenseArgs{
		Amount:  amount,
		DueDate: due,
		Name:    strings.Join(args[2:], " "),
	}, nil
}

// ParseID reads the single "#12" or "12" argument of del/done/pause/resume.
func ParseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errUsage
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errUsage
	}
	return id, nil
}

// ParseSignedAmount reads the single amount argument of /bank; the sign is
// kept so a balance can be set below zero.
func ParseSignedAmount(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errUsage
	}
	return core.ParseAmount(args[0])
}
