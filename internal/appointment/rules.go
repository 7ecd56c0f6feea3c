package appointment

var transitions = map[string][]string{
	StatusScheduled: {StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusNoShow:    {StatusScheduled},
	StatusCancelled: {StatusScheduled},
}

// CanTransition reports whether an appointment may move from one status to
// another. COMPLETED is final; cancelled and missed visits can be rebooked.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
