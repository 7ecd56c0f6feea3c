package treatment

import "math"

var transitions = map[string][]string{
	StatusPlanned: {StatusActive, StatusCancelled},
	StatusActive:  {StatusOnHold, StatusCompleted, StatusCancelled},
	StatusOnHold:  {StatusActive, StatusCancelled},
}

// CanTransition reports whether a plan may move from one status to another.
// COMPLETED and CANCELLED are final.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsClosed reports whether status is terminal.
func IsClosed(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}

// Progress is the rounded share of phases that are completed or skipped.
func Progress(phases []Phase) int {
	if len(phases) == 0 {
		return 0
	}
	done := 0
	for _, p := range phases {
		if p.Status == PhaseCompleted || p.Status == PhaseSkipped {
			done++
		}
	}
	return int(math.Round(100 * float64(done) / float64(len(phases))))
}
