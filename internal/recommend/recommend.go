// Package recommend suggests learning resources based on the errors a
// student keeps running into.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nodusapp/sage/internal/storage"
)

// Resource is one recommendable learning item from the static catalog.
type Resource struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Kind   string   `json:"kind"`
	URL    string   `json:"url"`
	Tags   []string `json:"tags"`
	Reason string   `json:"reason,omitempty"`
}

// catalog is the built-in resource library. Matching happens on lowercase
// tags against the tags of the student's error records.
var catalog = []Resource{
	{ID: "res-js-async", Title: "Async JavaScript, from callbacks to await", Kind: "article", URL: "https://developer.mozilla.org/en-US/docs/Learn/JavaScript/Asynchronous", Tags: []string{"javascript", "async", "promises"}},
	{ID: "res-js-closures", Title: "Closures and scope explained", Kind: "article", URL: "https://developer.mozilla.org/en-US/docs/Web/JavaScript/Closures", Tags: []string{"javascript", "closures", "scope"}},
	{ID: "res-react-hooks", Title: "Rules of React hooks", Kind: "docs", URL: "https://react.dev/reference/rules/rules-of-hooks", Tags: []string{"react", "hooks", "useeffect"}},
	{ID: "res-react-state", Title: "Thinking in React: state and data flow", Kind: "docs", URL: "https://react.dev/learn/thinking-in-react", Tags: []string{"react", "state", "props"}},
	{ID: "res-py-types", Title: "Common Python type errors and how to read them", Kind: "article", URL: "https://docs.python.org/3/tutorial/errors.html", Tags: []string{"python", "types", "typeerror"}},
	{ID: "res-py-loops", Title: "Iteration patterns in Python", Kind: "article", URL: "https://docs.python.org/3/tutorial/controlflow.html", Tags: []string{"python", "loops", "iteration"}},
	{ID: "res-sql-joins", Title: "A visual explanation of SQL joins", Kind: "article", URL: "https://blog.jooq.org/say-no-to-venn-diagrams-when-explaining-joins/", Tags: []string{"sql", "joins", "database"}},
	{ID: "res-git-undo", Title: "Undoing things in Git", Kind: "docs", URL: "https://git-scm.com/book/en/v2/Git-Basics-Undoing-Things", Tags: []string{"git", "version-control"}},
	{ID: "res-debugging", Title: "A systematic approach to debugging", Kind: "article", URL: "https://jvns.ca/blog/2022/12/08/a-debugging-manifesto/", Tags: []string{"debugging", "errors", "logic"}},
	{ID: "res-http-basics", Title: "How HTTP works", Kind: "article", URL: "https://developer.mozilla.org/en-US/docs/Web/HTTP/Overview", Tags: []string{"http", "networking", "api"}},
}

// errorLookback caps how many recent error records drive the match.
const errorLookback = 20

// Recommender matches the catalog against a student's recorded errors.
type Recommender struct {
	store *storage.Store
	limit int
}

func New(store *storage.Store, limit int) *Recommender {
	if limit <= 0 {
		limit = 5
	}
	return &Recommender{store: store, limit: limit}
}

// ForUser returns up to the configured number of resources, those matching
// the student's error tags first. With no errors on record the head of the
// catalog is returned as-is, so a new student still gets something to read.
func (r *Recommender) ForUser(ctx context.Context, userID string) ([]Resource, error) {
	items, err := r.store.ListErrorItems(ctx, userID, errorLookback)
	if err != nil {
		return nil, fmt.Errorf("listing error records: %w", err)
	}

	weights := tagWeights(items)
	if len(weights) == 0 {
		return append([]Resource(nil), catalog[:r.limit]...), nil
	}

	type scored struct {
		Resource
		score int
	}
	var matches []scored
	for _, res := range catalog {
		s, hits := matchScore(res, weights)
		if s > 0 {
			res.Reason = "Matches your recent errors: " + strings.Join(hits, ", ")
			matches = append(matches, scored{Resource: res, score: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	out := make([]Resource, 0, r.limit)
	seen := make(map[string]bool)
	for _, m := range matches {
		if len(out) == r.limit {
			break
		}
		out = append(out, m.Resource)
		seen[m.ID] = true
	}
	// Pad with unmatched catalog entries to keep the list a stable size.
	for _, res := range catalog {
		if len(out) == r.limit {
			break
		}
		if !seen[res.ID] {
			out = append(out, res)
		}
	}
	return out, nil
}

// tagWeights counts tag occurrences across the student's errors; unresolved
// errors count double since those are the active gaps.
func tagWeights(items []storage.WalletItem) map[string]int {
	weights := make(map[string]int)
	for _, item := range items {
		w := 1
		if !item.Resolved {
			w = 2
		}
		for _, tag := range item.Tags {
			weights[strings.ToLower(strings.TrimSpace(tag))] += w
		}
		if c := strings.ToLower(strings.TrimSpace(item.Category)); c != "" {
			weights[c] += w
		}
	}
	delete(weights, "")
	return weights
}

func matchScore(res Resource, weights map[string]int) (int, []string) {
	var score int
	var hits []string
	for _, tag := range res.Tags {
		if w := weights[tag]; w > 0 {
			score += w
			hits = append(hits, tag)
		}
	}
	return score, hits
}
