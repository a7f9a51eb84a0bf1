// Package pipeline answers mathematics questions through a fixed sequence of
// stages sharing one State value.
//
// # Overview
//
// A question flows through six stages, strictly in order:
//
//  1. InputValidation - heuristic vocabulary/symbol checks OR a semantic classifier
//  2. Retrieval - top-k similar problems from the knowledge base
//  3. Augmentation - web search, skipped when retrieval found a close match
//  4. Generation - a raw solution from question plus assembled context
//  5. Enforcement - bounded retries through a constrained generator and a
//     local quality gate, falling back to a deterministic template
//  6. FeedbackRecording - a synthetic rating forwarded to a feedback sink
//
// # Architecture
//
// Every stage implements Stage: it receives the State by value and returns
// the updated copy. Stages never return errors; collaborator failures are
// recorded on State.ErrorMessage (first failure wins) and later stages treat
// missing data as empty. If InputValidation rejects the question every later
// stage is a no-op.
//
// The enforcement retry loop is driven by Machine, a pure state machine:
//
//	Attempting --pass--> Accepted
//	Attempting --fail--> Retry --pass--> Accepted
//	                      Retry --fail, budget spent--> Exhausted
//
// Once a question is accepted, Enforcement always produces a non-empty
// FinalSolution: exhaustion, generation failure and a panic inside the
// enforcement loop route to FormatFallback. InputValidation and
// FeedbackRecording recover their own panics. A panic in any other stage is
// caught by Solve, which returns a minimal state carrying only the error.
//
// # Usage
//
//	p := pipeline.New(pipeline.Dependencies{
//	    Classifier: classifier,
//	    Retriever:  knowledgeBase,
//	    Searcher:   tavily,
//	    Generator:  generator,
//	    Formatter:  guarded,
//	    Feedback:   feedbackStore,
//	}, pipeline.WithLogger(logger))
//
//	result := p.Solve(ctx, "Solve the equation 2x + 5 = 15")
package pipeline
