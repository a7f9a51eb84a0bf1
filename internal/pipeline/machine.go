package pipeline

// Phase is a state of the enforcement retry loop.
type Phase string

const (
	PhaseAttempting Phase = "attempting"
	PhaseRetry      Phase = "retry"
	PhaseAccepted   Phase = "accepted"
	PhaseExhausted  Phase = "exhausted"
)

// Machine tracks the enforcement loop. It performs no I/O; the caller runs
// one attempt per non-terminal phase and reports whether it passed.
type Machine struct {
	Phase   Phase
	Attempt int // attempts already completed
	Max     int
}

// Start returns a machine ready for its first attempt. max < 1 is treated as 1.
func Start(max int) Machine {
	if max < 1 {
		max = 1
	}
	return Machine{Phase: PhaseAttempting, Max: max}
}

// Next records the outcome of the current attempt.
func (m Machine) Next(passed bool) Machine {
	if m.Done() {
		return m
	}
	m.Attempt++
	switch {
	case passed:
		m.Phase = PhaseAccepted
	case m.Attempt >= m.Max:
		m.Phase = PhaseExhausted
	default:
		m.Phase = PhaseRetry
	}
	return m
}

// Done reports whether the machine reached a terminal phase.
func (m Machine) Done() bool {
	return m.Phase == PhaseAccepted || m.Phase == PhaseExhausted
}
