package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/mathrag/internal/knowledge"
)

const arrayFixture = `[
  {"index": 10, "subject": "Math", "type": "MCQ", "question": "If x^2 = 4, find x", "description": "JEE Adv 2016", "gold": "B"},
  {"index": 11, "subject": "phy", "type": "Integer", "question": "Find the velocity", "gold": "3"},
  {"subject": "Algebra", "question": "Solve 2x + 3 = 7", "gold": "2"}
]`

const linesFixture = `{"index": 1, "subject": "chem", "question": "Balance the reaction", "gold": "A"}

{"index": 2, "subject": "MATHEMATICS", "type": "Numeric", "question": "Evaluate lim x->0 sin x / x", "gold": "1"}
`

func TestIsMathSubject(t *testing.T) {
	for _, s := range []string{"math", "Mathematics", "ALGEBRA", "calculus", "Coordinate Geometry", "trigonometry"} {
		assert.True(t, IsMathSubject(s), s)
	}
	for _, s := range []string{"phy", "chem", "", "biology"} {
		assert.False(t, IsMathSubject(s), s)
	}
}

func TestDecode_Array(t *testing.T) {
	rows, err := Decode(strings.NewReader(arrayFixture))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	problems := Filter(rows)
	require.Len(t, problems, 2)

	assert.Equal(t, knowledge.Problem{
		ID:          "jee_math_0",
		Question:    "If x^2 = 4, find x",
		Description: "JEE Adv 2016",
		Answer:      "B",
		Topic:       "MCQ",
		Difficulty:  "Medium",
		Source:      "JEE_Bench",
		Subject:     "math",
		Index:       10,
	}, problems[0])

	// row without index or type falls back to its position and General
	assert.Equal(t, "jee_math_2", problems[1].ID)
	assert.Equal(t, 2, problems[1].Index)
	assert.Equal(t, "General", problems[1].Topic)
	assert.Equal(t, "algebra", problems[1].Subject)
}

func TestDecode_Lines(t *testing.T) {
	rows, err := Decode(strings.NewReader(linesFixture))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	problems := Filter(rows)
	require.Len(t, problems, 1)
	assert.Equal(t, "jee_math_1", problems[0].ID)
	assert.Equal(t, "mathematics", problems[0].Subject)
	assert.Equal(t, "Numeric", problems[0].Topic)
}

func TestDecode_Errors(t *testing.T) {
	rows, err := Decode(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = Decode(strings.NewReader("question,answer"))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Decode(strings.NewReader("{\"subject\": \"math\"}\n{broken"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestToProblem_MissingQuestion(t *testing.T) {
	p := Row{Subject: "math"}.ToProblem(5)
	assert.Equal(t, "Question not available", p.Question)
	assert.Equal(t, 5, p.Index)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jee.json")
	require.NoError(t, os.WriteFile(path, []byte(arrayFixture), 0o600))

	problems, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, problems, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jee.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(linesFixture), 0o600))

	reloaded := make(chan []knowledge.Problem, 4)
	w, err := NewWatcher(path, func(_ context.Context, p []knowledge.Problem) {
		reloaded <- p
	}, nil)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(arrayFixture), 0o600))

	select {
	case problems := <-reloaded:
		assert.Len(t, problems, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jee.json")
	require.NoError(t, os.WriteFile(path, []byte(arrayFixture), 0o600))

	called := make(chan struct{}, 1)
	w, err := NewWatcher(path, func(context.Context, []knowledge.Problem) { called <- struct{}{} }, nil)
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	select {
	case <-called:
		t.Fatal("reload triggered by unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
	w.Stop()
	w.Stop()
}

func TestNewWatcher_RequiresCallback(t *testing.T) {
	_, err := NewWatcher("x.json", nil, nil)
	assert.Error(t, err)
}
