package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/fyrsmithlabs/mathrag/internal/pipeline"
	"github.com/fyrsmithlabs/mathrag/internal/redact"
)

// SubjectPrefix is the NATS subject root for feedback records.
const SubjectPrefix = "mathrag.feedback"

// Subject returns the subject a record with rating is published on.
func Subject(rating int) string {
	return fmt.Sprintf("%s.%d", SubjectPrefix, rating)
}

// NATSPublisher publishes feedback records as JSON.
type NATSPublisher struct {
	conn     *nats.Conn
	redactor *redact.Redactor
}

// NewNATSPublisher wraps an established connection. Records are scrubbed
// with redactor, which may be nil, before they leave the process.
func NewNATSPublisher(nc *nats.Conn, redactor *redact.Redactor) (*NATSPublisher, error) {
	if nc == nil {
		return nil, errors.New("nats connection is required")
	}
	return &NATSPublisher{conn: nc, redactor: redactor}, nil
}

// Record publishes rec on Subject(rec.Rating).
func (p *NATSPublisher) Record(ctx context.Context, rec pipeline.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(Scrub(p.redactor, rec))
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}
	if err := p.conn.Publish(Subject(rec.Rating), data); err != nil {
		return fmt.Errorf("publish feedback: %w", err)
	}
	return nil
}

var _ pipeline.FeedbackSink = (*NATSPublisher)(nil)
