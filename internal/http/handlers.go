package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/mathrag/internal/logging"
	"github.com/fyrsmithlabs/mathrag/internal/mcp"
	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
)

const (
	sourceKnowledgeBase = "Knowledge Base"
	sourceWebSearch     = "Web Search"

	confidenceFull    = 1.0
	confidencePartial = 0.7
)

// RootResponse is the service banner.
type RootResponse struct {
	Message  string   `json:"message"`
	Version  string   `json:"version"`
	Status   string   `json:"status"`
	Features []string `json:"features"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status            string          `json:"status"`
	Components        map[string]bool `json:"components"`
	KnowledgeBaseSize int             `json:"knowledge_base_size"`
	TotalFeedback     int             `json:"total_feedback"`
	MCPAvailable      bool            `json:"mcp_available"`
}

// SolveRequest is the body of POST /solve and /solve/stream.
type SolveRequest struct {
	Question string `json:"question" validate:"required,max=1000"`
}

// GuardrailsPassed reports which quality gates accepted the solve.
type GuardrailsPassed struct {
	Input  bool `json:"input"`
	Output bool `json:"output"`
}

// SolveResponse is the response body for POST /solve.
type SolveResponse struct {
	Question         string           `json:"question"`
	Solution         string           `json:"solution"`
	Confidence       float64          `json:"confidence"`
	Sources          []string         `json:"sources"`
	ProcessingTime   float64          `json:"processing_time"`
	SessionID        string           `json:"session_id"`
	GuardrailsPassed GuardrailsPassed `json:"guardrails_passed"`
	Attempts         int              `json:"attempts"`
	Error            string           `json:"error,omitempty"`
}

// FeedbackRequest is the body of POST /feedback.
type FeedbackRequest struct {
	SessionID string            `json:"session_id"`
	Question  string            `json:"question" validate:"max=1000"`
	Solution  string            `json:"solution"`
	Rating    int               `json:"rating" validate:"required,min=1,max=5"`
	Comments  map[string]string `json:"comments"`
}

// FeedbackResponse acknowledges stored feedback.
type FeedbackResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ToolsResponse lists the MCP tools.
type ToolsResponse struct {
	Available bool           `json:"available"`
	ToolCount int            `json:"tool_count"`
	Tools     []mcp.ToolInfo `json:"tools"`
}

// ComponentsResponse lists the wired components.
type ComponentsResponse struct {
	InitializedComponents []string `json:"initialized_components"`
	TotalComponents       int      `json:"total_components"`
	SystemStatus          string   `json:"system_status"`
}

// StreamEvent is one server-sent event on /solve/stream.
type StreamEvent struct {
	Type             string            `json:"type"`
	Message          string            `json:"message,omitempty"`
	SessionID        string            `json:"session_id"`
	Question         string            `json:"question,omitempty"`
	Solution         string            `json:"solution,omitempty"`
	GuardrailsPassed *GuardrailsPassed `json:"guardrails_passed,omitempty"`
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, RootResponse{
		Message:  "Math RAG API with MCP Integration",
		Version:  s.config.Version,
		Status:   "active",
		Features: []string{"Guardrails", "Vector Knowledge Base", "Web Search", "MCP Tools", "Human Feedback"},
	})
}

// components runs every probe concurrently, each bounded by the probe
// timeout.
func (s *Server) components(ctx context.Context) map[string]bool {
	result := make(map[string]bool, len(s.deps.Probes))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range s.deps.Probes {
		g.Go(func() error {
			ok := true
			if p.Check != nil {
				pctx, cancel := context.WithTimeout(gctx, s.config.ProbeTimeout)
				defer cancel()
				if err := p.Check(pctx); err != nil {
					ok = false
					s.logger.Warn(ctx, "health probe failed", zap.String("component", p.Name), zap.Error(err))
				}
			}
			mu.Lock()
			result[p.Name] = ok
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return result
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()
	comps := s.components(ctx)

	status := "healthy"
	for _, ok := range comps {
		if !ok {
			status = "degraded"
			break
		}
	}
	resp := HealthResponse{
		Status:       status,
		Components:   comps,
		MCPAvailable: true,
	}
	if s.deps.Stats != nil {
		resp.KnowledgeBaseSize = s.deps.Stats.Stats().TotalProblems
	}
	if s.deps.Feedback != nil {
		resp.TotalFeedback = s.deps.Feedback.Analytics().TotalFeedback
	}
	return c.JSON(http.StatusOK, resp)
}

func sources(st pipeline.State) []string {
	if len(st.SearchResults) > 0 {
		return []string{sourceKnowledgeBase, sourceWebSearch}
	}
	return []string{sourceKnowledgeBase}
}

func confidence(st pipeline.State) float64 {
	if st.InputAccepted && st.OutputAccepted {
		return confidenceFull
	}
	return confidencePartial
}

func solveResponse(res pipeline.Result) SolveResponse {
	return SolveResponse{
		Question:         res.Question,
		Solution:         res.FinalSolution,
		Confidence:       confidence(res.State),
		Sources:          sources(res.State),
		ProcessingTime:   res.Duration.Seconds(),
		SessionID:        res.SessionID,
		GuardrailsPassed: GuardrailsPassed{Input: res.InputAccepted, Output: res.OutputAccepted},
		Attempts:         res.AttemptsUsed,
		Error:            res.ErrorMessage,
	}
}

func (s *Server) handleSolve(c echo.Context) error {
	var req SolveRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := logging.WithSessionID(c.Request().Context(), uuid.NewString())
	res := s.deps.Solver.Solve(ctx, req.Question)
	return c.JSON(http.StatusOK, solveResponse(res))
}

var stageMessages = map[pipeline.StageName]string{
	pipeline.StageInputValidation: "Applying input guardrails...",
	pipeline.StageRetrieval:       "Searching knowledge base...",
	pipeline.StageAugmentation:    "Checking whether web search is needed...",
	pipeline.StageGeneration:      "Generating solution...",
	pipeline.StageEnforcement:     "Applying output guardrails...",
	pipeline.StageFeedback:        "Recording feedback...",
}

func (s *Server) handleSolveStream(c echo.Context) error {
	var req SolveRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	sessionID := uuid.NewString()
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(ev StreamEvent) {
		ev.SessionID = sessionID
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
		w.Flush()
	}

	send(StreamEvent{Type: "status", Message: "Starting analysis..."})

	ctx := logging.WithSessionID(c.Request().Context(), sessionID)
	// progress callbacks run synchronously inside Solve on this goroutine
	ctx = pipeline.WithProgress(ctx, func(p pipeline.Progress) {
		if p.Done {
			return
		}
		if p.Stage != pipeline.StageInputValidation && p.State.Rejected() {
			return
		}
		if msg, ok := stageMessages[p.Stage]; ok {
			send(StreamEvent{Type: "status", Message: msg})
		}
	})
	res := s.deps.Solver.Solve(ctx, req.Question)

	if res.FirstErrorKind == pipeline.KindOrchestratorFault {
		send(StreamEvent{Type: "error", Message: res.ErrorMessage})
		return nil
	}
	send(StreamEvent{
		Type:             "solution",
		Question:         res.Question,
		Solution:         res.FinalSolution,
		GuardrailsPassed: &GuardrailsPassed{Input: res.InputAccepted, Output: res.OutputAccepted},
	})
	send(StreamEvent{Type: "complete"})
	return nil
}

func (s *Server) handleFeedback(c echo.Context) error {
	if s.deps.Feedback == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "feedback store not configured")
	}
	var req FeedbackRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	rec := pipeline.Record{
		SessionID: req.SessionID,
		Question:  req.Question,
		Solution:  req.Solution,
		Rating:    req.Rating,
		Comments:  req.Comments,
		Source:    pipeline.SourceUser,
		Timestamp: time.Now(),
	}
	if err := s.deps.Feedback.Record(ctx, rec); err != nil {
		s.logger.Error(ctx, "failed to store feedback", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to submit feedback")
	}
	return c.JSON(http.StatusOK, FeedbackResponse{Message: "Feedback submitted successfully", SessionID: req.SessionID})
}

func (s *Server) handleAnalytics(c echo.Context) error {
	if s.deps.Feedback == nil {
		return c.JSON(http.StatusOK, map[string]any{"total_feedback": 0, "average_rating": 0, "rating_distribution": map[int]int{}})
	}
	return c.JSON(http.StatusOK, s.deps.Feedback.Analytics())
}

func (s *Server) handleStats(c echo.Context) error {
	if s.deps.Stats == nil {
		return c.JSON(http.StatusOK, map[string]any{"total_problems": 0, "topics": []string{}, "subjects": []string{}, "sources": []string{}})
	}
	return c.JSON(http.StatusOK, s.deps.Stats.Stats())
}

func (s *Server) handleTools(c echo.Context) error {
	return c.JSON(http.StatusOK, toolsResponse())
}

func (s *Server) handleComponents(c echo.Context) error {
	names := []string{"pipeline"}
	if s.deps.Feedback != nil {
		names = append(names, "feedback")
	}
	if s.deps.Stats != nil {
		names = append(names, "knowledge_base")
	}
	for _, p := range s.deps.Probes {
		names = append(names, p.Name)
	}
	slices.Sort(names)
	names = slices.Compact(names)
	return c.JSON(http.StatusOK, ComponentsResponse{
		InitializedComponents: names,
		TotalComponents:       len(names),
		SystemStatus:          "operational",
	})
}
