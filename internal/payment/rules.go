package payment

// Refunds go through Refund, never a plain status change.
var transitions = map[string][]string{
	StatusPending: {StatusCompleted, StatusFailed},
	StatusFailed:  {StatusPending, StatusCompleted},
}

func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
