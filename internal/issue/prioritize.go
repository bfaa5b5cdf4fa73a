package issue

import "sort"

const maxActionableIssues = 3

// Prioritize deduplicates by kind, orders blocking issues first, and caps
// the list so callers never overwhelm the user.
func Prioritize(issues []Issue) []Issue {
	if len(issues) == 0 {
		return nil
	}

	seen := make(map[Kind]struct{}, len(issues))
	unique := make([]Issue, 0, len(issues))
	for _, i := range issues {
		if _, ok := seen[i.Kind]; ok {
			continue
		}
		seen[i.Kind] = struct{}{}
		unique = append(unique, i)
	}

	sort.SliceStable(unique, func(a, b int) bool {
		return unique[a].Severity.rank() < unique[b].Severity.rank()
	})

	if len(unique) > maxActionableIssues {
		unique = unique[:maxActionableIssues]
	}
	return unique
}

// Score maps an issue list to 0..100. No issues is a perfect score.
func Score(issues []Issue) float64 {
	if len(issues) == 0 {
		return 100
	}
	penalty := 0
	for _, i := range issues {
		switch i.Severity {
		case SeverityBlocking:
			penalty += 30
		case SeverityWarning:
			penalty += 10
		case SeverityInfo:
			penalty += 2
		}
	}
	if penalty > 100 {
		penalty = 100
	}
	return float64(100 - penalty)
}

// IsReady reports whether the document can be submitted, which requires
// that no blocking issue survives prioritization.
func IsReady(issues []Issue) bool {
	for _, i := range Prioritize(issues) {
		if i.Severity == SeverityBlocking {
			return false
		}
	}
	return true
}

// PrimaryBlocking returns the most important blocking issue, if any.
func PrimaryBlocking(issues []Issue) (Issue, bool) {
	for _, i := range issues {
		if i.Severity == SeverityBlocking {
			return i, true
		}
	}
	return Issue{}, false
}

// GroupBySeverity buckets issues by severity level.
func GroupBySeverity(issues []Issue) map[Severity][]Issue {
	grouped := map[Severity][]Issue{
		SeverityBlocking: nil,
		SeverityWarning:  nil,
		SeverityInfo:     nil,
	}
	for _, i := range issues {
		if i.Severity.IsValid() {
			grouped[i.Severity] = append(grouped[i.Severity], i)
		}
	}
	return grouped
}
