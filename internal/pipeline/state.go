package pipeline

// RetrievalResult is a knowledge-base match. Lower Score means closer.
type RetrievalResult struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Topic    string  `json:"topic"`
	Score    float64 `json:"score"`
	Content  string  `json:"content"`
}

// SearchResult is a web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// Feedback is the rating attached to a solved question.
type Feedback struct {
	Rating   int               `json:"rating"`
	Comments map[string]string `json:"comments"`
}

// State is threaded through every stage. Stages receive it by value and
// return a modified copy; slices are replaced, never appended in place.
type State struct {
	Question         string            `json:"question"`
	InputAccepted    bool              `json:"input_accepted"`
	RetrievalResults []RetrievalResult `json:"retrieval_results"`
	SearchResults    []SearchResult    `json:"search_results"`
	RawSolution      string            `json:"raw_solution"`
	FinalSolution    string            `json:"final_solution"`
	OutputAccepted   bool              `json:"output_accepted"`
	AttemptsUsed     int               `json:"attempts_used"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	Feedback         *Feedback         `json:"feedback,omitempty"`
}

// NewState creates the initial state for a question.
func NewState(question string) State {
	return State{
		Question:         question,
		RetrievalResults: []RetrievalResult{},
		SearchResults:    []SearchResult{},
	}
}

// HasError reports whether any stage recorded a failure.
func (s State) HasError() bool {
	return s.ErrorMessage != ""
}

// withError records msg unless an earlier failure is already recorded.
func (s State) withError(msg string) State {
	if s.ErrorMessage == "" {
		s.ErrorMessage = msg
	}
	return s
}

// Rejected reports whether input validation refused the question.
func (s State) Rejected() bool {
	return !s.InputAccepted
}
