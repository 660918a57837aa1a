package sweep

import "github.com/fslongjin/bandsweep/pkg/model"

// MaxReasons is how many distinct failure reasons a summary lists.
const MaxReasons = 2

// FailureSummary condenses failed items for display.
type FailureSummary struct {
	Reasons []string
	More    bool
}

// SummarizeFailures de-duplicates error messages in first-seen order and
// keeps at most limit of them.
func SummarizeFailures(items []model.FailedItem, limit int) FailureSummary {
	seen := make(map[string]bool)
	var reasons []string
	for _, item := range items {
		msg := item.ErrorMessage
		if msg == "" {
			msg = "unknown error"
		}
		if seen[msg] {
			continue
		}
		seen[msg] = true
		reasons = append(reasons, msg)
	}
	if limit > 0 && len(reasons) > limit {
		return FailureSummary{Reasons: reasons[:limit], More: true}
	}
	return FailureSummary{Reasons: reasons}
}
