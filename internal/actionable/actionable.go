package actionable

import (
	"fmt"
	"strings"

	"meeting-insights-go/internal/types"
)

const Unassigned = "Not specified"

// Normalize coerces the model's actionItems array. Entries that are not
// objects or have no item text are dropped; order is preserved.
func Normalize(raw []any) []types.ActionItem {
	out := []types.ActionItem{}
	for _, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		item := text(obj["item"])
		if item == "" {
			continue
		}
		assignee := text(obj["assignee"])
		if assignee == "" {
			assignee = Unassigned
		}
		out = append(out, types.ActionItem{
			Item:     item,
			Assignee: assignee,
			Priority: NormalizePriority(text(obj["priority"])),
			DueDate:  text(obj["dueDate"]),
		})
	}
	return out
}

// NormalizePriority accepts High/Medium/Low in any case; anything else is Medium.
func NormalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "high":
		return types.PriorityHigh
	case "low":
		return types.PriorityLow
	default:
		return types.PriorityMedium
	}
}

// Decisions keeps the non-blank string entries.
func Decisions(raw []any) []string {
	out := []string{}
	for _, d := range raw {
		s, ok := d.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	default:
		return ""
	}
}
