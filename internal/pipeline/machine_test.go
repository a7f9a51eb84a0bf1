package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMachine_AcceptFirstAttempt(t *testing.T) {
	m := Start(3)
	assert.Equal(t, PhaseAttempting, m.Phase)
	assert.False(t, m.Done())

	m = m.Next(true)
	assert.Equal(t, PhaseAccepted, m.Phase)
	assert.Equal(t, 1, m.Attempt)
	assert.True(t, m.Done())
}

func TestMachine_RetryThenAccept(t *testing.T) {
	m := Start(3).Next(false)
	assert.Equal(t, PhaseRetry, m.Phase)
	assert.Equal(t, 1, m.Attempt)

	m = m.Next(true)
	assert.Equal(t, PhaseAccepted, m.Phase)
	assert.Equal(t, 2, m.Attempt)
}

func TestMachine_Exhausted(t *testing.T) {
	m := Start(3)
	for !m.Done() {
		m = m.Next(false)
	}
	assert.Equal(t, PhaseExhausted, m.Phase)
	assert.Equal(t, 3, m.Attempt)
}

func TestMachine_TerminalIsSticky(t *testing.T) {
	m := Start(1).Next(false)
	assert.Equal(t, PhaseExhausted, m.Phase)
	assert.Equal(t, m, m.Next(true))

	a := Start(2).Next(true)
	assert.Equal(t, a, a.Next(false))
}

func TestMachine_AttemptBound(t *testing.T) {
	for max := 0; max <= 5; max++ {
		for pattern := 0; pattern < 1<<5; pattern++ {
			m := Start(max)
			steps := 0
			for !m.Done() {
				m = m.Next(pattern&(1<<steps) != 0)
				steps++
			}
			assert.GreaterOrEqual(t, m.Attempt, 1)
			assert.LessOrEqual(t, m.Attempt, m.Max)
			assert.Equal(t, steps, m.Attempt)
		}
	}
}

func TestLocalCheck(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{"99 chars with step", "step" + strings.Repeat("a", 95), false},
		{"150 chars with answer", "answer" + strings.Repeat("b", 144), true},
		{"100 chars with Solution", "Solution" + strings.Repeat(".", 92), true},
		{"long without markers", strings.Repeat("z", 300), false},
		{"uppercase marker", "STEP" + strings.Repeat(" ", 120), true},
		{"multibyte counted as runes", "answer " + strings.Repeat("√", 92), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LocalCheck(tt.candidate, 100))
		})
	}
}

func TestFormatFallback(t *testing.T) {
	out := FormatFallback("x = 5", "Solve 2x + 5 = 15")

	assert.Equal(t, out, FormatFallback("x = 5", "Solve 2x + 5 = 15"))
	assert.True(t, strings.HasPrefix(out, "Solution:\n\nStep 1: Understanding the Problem\nSolve 2x + 5 = 15\n\n"))
	assert.Contains(t, out, "Step 2: Detailed Solution\nx = 5\n\n")
	assert.Contains(t, out, "Step 3: Verification and Final Answer")
	assert.Contains(t, out, "Therefore, the final answer is contained in the detailed solution provided in Step 2.")
}

func TestFormatFallback_EmptyInputs(t *testing.T) {
	for _, in := range [][2]string{{"", ""}, {"", "q"}, {"raw", ""}} {
		out := FormatFallback(in[0], in[1])
		assert.NotEmpty(t, out)
		assert.Contains(t, out, "Solution:")
		assert.Contains(t, out, "Step 1")
		assert.Contains(t, out, "Therefore")
	}
}
