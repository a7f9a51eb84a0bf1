package knowledge

import (
	"sort"
	"sync"
)

// Stats summarizes a set of problems.
type Stats struct {
	TotalProblems int      `json:"total_problems"`
	Topics        []string `json:"topics"`
	Subjects      []string `json:"subjects"`
	Sources       []string `json:"sources"`
}

// ComputeStats returns totals and the sorted unique topics, subjects and
// sources of problems. Empty values are not listed.
func ComputeStats(problems []Problem) Stats {
	topics := map[string]struct{}{}
	subjects := map[string]struct{}{}
	sources := map[string]struct{}{}
	for _, p := range problems {
		addNonEmpty(topics, p.Topic)
		addNonEmpty(subjects, p.Subject)
		addNonEmpty(sources, p.Source)
	}
	return Stats{
		TotalProblems: len(problems),
		Topics:        sortedKeys(topics),
		Subjects:      sortedKeys(subjects),
		Sources:       sortedKeys(sources),
	}
}

func addNonEmpty(set map[string]struct{}, v string) {
	if v != "" {
		set[v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Catalog keeps the problems loaded into a store so stats can be served
// without scanning the vector index. Safe for concurrent use.
type Catalog struct {
	mu       sync.RWMutex
	problems map[string]Problem
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{problems: make(map[string]Problem)}
}

// Put adds or replaces problems by ID.
func (c *Catalog) Put(problems ...Problem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range problems {
		c.problems[p.ID] = p
	}
}

// Len returns the number of problems.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.problems)
}

// Stats computes stats over the catalog.
func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	all := make([]Problem, 0, len(c.problems))
	for _, p := range c.problems {
		all = append(all, p)
	}
	c.mu.RUnlock()
	return ComputeStats(all)
}
