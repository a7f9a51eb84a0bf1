// Package feedback collects solution ratings from the pipeline and from
// users, reports aggregate analytics and forwards records to NATS.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mathrag/internal/logging"
	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
	"github.com/fyrsmithlabs/mathrag/internal/redact"
)

// ErrInvalidRating is returned for ratings outside 1..5.
var ErrInvalidRating = errors.New("rating must be between 1 and 5")

const (
	MinRating = 1
	MaxRating = 5
)

// Analytics summarizes collected feedback.
type Analytics struct {
	TotalFeedback      int         `json:"total_feedback"`
	AverageRating      float64     `json:"average_rating"`
	RatingDistribution map[int]int `json:"rating_distribution"`
}

// Store keeps feedback in memory. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	records  []pipeline.Record
	redactor *redact.Redactor
	logger   *logging.Logger
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithRedactor scrubs records before they are kept.
func WithRedactor(r *redact.Redactor) Option {
	return func(s *Store) { s.redactor = r }
}

// WithLogger sets the store logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{logger: logging.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("feedback")
	return s
}

// Validate checks a record's rating.
func Validate(rec pipeline.Record) error {
	if rec.Rating < MinRating || rec.Rating > MaxRating {
		return fmt.Errorf("%w, got %d", ErrInvalidRating, rec.Rating)
	}
	return nil
}

// Record stores rec after validation and redaction.
func (s *Store) Record(ctx context.Context, rec pipeline.Record) error {
	if err := Validate(rec); err != nil {
		return err
	}
	rec = Scrub(s.redactor, rec)
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	if rec.Source == "" {
		rec.Source = pipeline.SourceUser
	}

	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()

	s.logger.Info(ctx, "feedback recorded",
		zap.Int("rating", rec.Rating),
		zap.String("source", rec.Source))
	return nil
}

// Scrub redacts the question, solution and comments of rec. A nil redactor
// leaves them as they are. Fallback solutions quote the question, so the
// solution needs the same treatment.
func Scrub(r *redact.Redactor, rec pipeline.Record) pipeline.Record {
	rec.Question = r.Redact(rec.Question)
	rec.Solution = r.Redact(rec.Solution)
	if len(rec.Comments) > 0 {
		comments := make(map[string]string, len(rec.Comments))
		for k, v := range rec.Comments {
			comments[k] = r.Redact(v)
		}
		rec.Comments = comments
	}
	return rec
}

// Records returns a copy of everything recorded, oldest first.
func (s *Store) Records() []pipeline.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pipeline.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Analytics computes totals, the average rating rounded to two decimals
// and the per-rating distribution.
func (s *Store) Analytics() Analytics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := Analytics{RatingDistribution: map[int]int{}}
	if len(s.records) == 0 {
		return a
	}
	sum := 0
	for _, r := range s.records {
		sum += r.Rating
		a.RatingDistribution[r.Rating]++
	}
	a.TotalFeedback = len(s.records)
	a.AverageRating = math.Round(float64(sum)/float64(len(s.records))*100) / 100
	return a
}

var _ pipeline.FeedbackSink = (*Store)(nil)
