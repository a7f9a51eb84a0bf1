package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fyrsmithlabs/mathrag/internal/guardrails"
)

// MockClassifier is a mock implementation of Classifier
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) IsMathQuestion(ctx context.Context, question string) (bool, error) {
	args := m.Called(ctx, question)
	return args.Bool(0), args.Error(1)
}

// MockRetriever is a mock implementation of KnowledgeRetriever
type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Search(ctx context.Context, question string, k int) ([]RetrievalResult, error) {
	args := m.Called(ctx, question, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]RetrievalResult), args.Error(1)
}

// MockSearcher is a mock implementation of WebSearcher
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]SearchResult), args.Error(1)
}

// MockGenerator is a mock implementation of Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, question, context string) (string, error) {
	args := m.Called(ctx, question, context)
	return args.String(0), args.Error(1)
}

// MockFormatter is a mock implementation of ConstrainedGenerator
type MockFormatter struct {
	mock.Mock
}

func (m *MockFormatter) GenerateConstrained(ctx context.Context, prompt Prompt, d guardrails.Directives) (string, error) {
	args := m.Called(ctx, prompt, d)
	return args.String(0), args.Error(1)
}

// MockSink is a mock implementation of FeedbackSink
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Record(ctx context.Context, rec Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

const goodSolution = `Solution:

Step 1: Subtract 5 from both sides: 2x = 10.
Step 2: Divide both sides by 2: x = 5.

Therefore, the final answer is x = 5.`
