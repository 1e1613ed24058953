package services

import (
	"fmt"
	"strings"

	"budgetbot/internal/core"
)

// FallbackHint is posted to the fallback channel when nobody configured a
// personal reminder.
const FallbackHint = "Budget reminder: use /reste to see what is left to pay this month, /sub list and /pay list for details."

// RenderDigest formats the daily reminder for one user.
func RenderDigest(r core.RemainingMonth, marker string) string {
	lines := []string{"Budget reminder:"}
	lines = append(lines, renderSections(r, marker, "- ", "  • ")...)
	return strings.Join(lines, "\n")
}

// RenderRemaining formats the on-demand "remaining this month" answer.
func RenderRemaining(r core.RemainingMonth, marker string) string {
	return strings.Join(renderSections(r, marker, "", "- "), "\n")
}

func renderSections(r core.RemainingMonth, marker, header, bullet string) []string {
	var lines []string
	if len(r.Subscriptions) > 0 {
		lines = append(lines, header+"Upcoming subscriptions:")
		for _, s := range r.Subscriptions {
			lines = append(lines, fmt.Sprintf("%s%s on day %d: %s", bullet, s.Name, s.DayOfMonth, core.FormatCentsWith(s.Amount.Cents, marker)))
		}
	}
	if len(r.Expenses) > 0 {
		lines = append(lines, header+"Expenses to pay:")
		for _, e := range r.Expenses {
			lines = append(lines, fmt.Sprintf("%s%s due %s: %s", bullet, e.Name, e.DueDate, core.FormatCentsWith(e.Amount.Cents, marker)))
		}
	}
	lines = append(lines, "Total remaining this month: "+core.FormatCentsWith(r.Total.Cents, marker))
	return lines
}
