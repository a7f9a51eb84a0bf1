// Package dataset loads JEE Bench problems from local JSON or JSONL files
// and watches them for changes.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/mathrag/internal/knowledge"
)

// ErrUnknownFormat is returned when a file is neither a JSON array nor JSONL.
var ErrUnknownFormat = errors.New("unrecognized dataset format")

const (
	defaultTopic      = "General"
	defaultDifficulty = "Medium"
	defaultSubject    = "mathematics"
	defaultQuestion   = "Question not available"

	// Source tags every problem loaded from JEE Bench.
	Source = "JEE_Bench"
)

var mathSubjects = []string{"math", "mathematics", "algebra", "calculus", "geometry", "trigonometry"}

// Row is one JEE Bench record. Index is a pointer because the field is
// optional and zero is a valid index.
type Row struct {
	Index       *int   `json:"index"`
	Subject     string `json:"subject"`
	Type        string `json:"type"`
	Question    string `json:"question"`
	Description string `json:"description"`
	Gold        string `json:"gold"`
}

// IsMathSubject reports whether subject names a math subject.
func IsMathSubject(subject string) bool {
	lower := strings.ToLower(subject)
	for _, kw := range mathSubjects {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ToProblem converts the row at position pos into a Problem.
func (r Row) ToProblem(pos int) knowledge.Problem {
	idx := pos
	if r.Index != nil {
		idx = *r.Index
	}
	topic := r.Type
	if topic == "" {
		topic = defaultTopic
	}
	subject := strings.ToLower(r.Subject)
	if subject == "" {
		subject = defaultSubject
	}
	question := r.Question
	if question == "" {
		question = defaultQuestion
	}
	return knowledge.Problem{
		ID:          "jee_math_" + strconv.Itoa(pos),
		Question:    question,
		Description: r.Description,
		Answer:      r.Gold,
		Topic:       topic,
		Difficulty:  defaultDifficulty,
		Source:      Source,
		Subject:     subject,
		Index:       idx,
	}
}

// Filter keeps the math rows. Positions refer to the unfiltered slice so
// IDs stay stable when other subjects are added or removed around them.
func Filter(rows []Row) []knowledge.Problem {
	out := make([]knowledge.Problem, 0, len(rows))
	for i, r := range rows {
		if IsMathSubject(r.Subject) {
			out = append(out, r.ToProblem(i))
		}
	}
	return out
}

// LoadFile reads a dataset file and returns its math problems.
func LoadFile(path string) ([]knowledge.Problem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	rows, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return Filter(rows), nil
}

// Decode reads a JSON array of rows or one row per line.
func Decode(r io.Reader) ([]Row, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []Row{}, nil
		}
		return nil, err
	}

	switch first {
	case '[':
		var rows []Row
		if err := json.NewDecoder(br).Decode(&rows); err != nil {
			return nil, err
		}
		return rows, nil
	case '{':
		return decodeLines(br)
	default:
		return nil, fmt.Errorf("%w: starts with %q", ErrUnknownFormat, first)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		return b, br.UnreadByte()
	}
}

func decodeLines(br *bufio.Reader) ([]Row, error) {
	var rows []Row
	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var row Row
		if err := json.Unmarshal(text, &row); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
