// Package knowledge stores solved problems and finds the ones closest to a
// new question.
//
// Stores return pipeline.RetrievalResult values whose Score is a cosine
// distance (1 - similarity), ordered ascending so the first result is the
// closest match.
package knowledge

import (
	"strconv"
	"strings"
)

// Problem is a solved exercise in the knowledge base.
type Problem struct {
	ID          string `json:"id"`
	Question    string `json:"question"`
	Description string `json:"description,omitempty"`
	Answer      string `json:"answer"`
	Topic       string `json:"topic"`
	Difficulty  string `json:"difficulty"`
	Source      string `json:"source"`
	Subject     string `json:"subject"`
	Index       int    `json:"index"`
}

// Content is the text that gets embedded.
func (p Problem) Content() string {
	var parts []string
	if p.Question != "" {
		parts = append(parts, "Question: "+p.Question)
	}
	if p.Description != "" {
		parts = append(parts, "Description: "+p.Description)
	}
	if p.Answer != "" {
		parts = append(parts, "Answer: "+p.Answer)
	}
	return strings.Join(parts, "\n")
}

// Metadata flattens the problem for stores with string-only metadata.
func (p Problem) Metadata() map[string]string {
	return map[string]string{
		"id":          p.ID,
		"question":    p.Question,
		"description": p.Description,
		"answer":      p.Answer,
		"topic":       p.Topic,
		"difficulty":  p.Difficulty,
		"source":      p.Source,
		"subject":     p.Subject,
		"index":       strconv.Itoa(p.Index),
	}
}

// problemFromMetadata reverses Metadata.
func problemFromMetadata(m map[string]string) Problem {
	idx, _ := strconv.Atoi(m["index"])
	return Problem{
		ID:          m["id"],
		Question:    m["question"],
		Description: m["description"],
		Answer:      m["answer"],
		Topic:       m["topic"],
		Difficulty:  m["difficulty"],
		Source:      m["source"],
		Subject:     m["subject"],
		Index:       idx,
	}
}
