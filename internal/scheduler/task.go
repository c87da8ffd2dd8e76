// Package scheduler provides a priority crawl queue with per-domain
// politeness and concurrency limits.
package scheduler

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Stage tags a task with the pipeline phase that handles it
type Stage string

// Task is a unit of crawl work. Priority orders the queue (higher first),
// Depth tracks fan-out distance from the seed, and Payload carries
// stage-specific context between handlers.
type Task struct {
	ID          string
	URL         string
	Stage       Stage
	Priority    int
	Depth       int
	DedupExempt bool // skip duplicate filtering, like repeated searches
	Payload     any

	seq uint64 // insertion order, FIFO tiebreak within a priority
}

// NewTask constructs a task with a fresh ID
func NewTask(stage Stage, taskURL string, priority int) Task {
	return Task{
		ID:       uuid.New().String(),
		URL:      taskURL,
		Stage:    stage,
		Priority: priority,
	}
}

// credentialParams are query parameters stripped before fingerprinting so
// that the same logical request deduplicates regardless of key rotation.
var credentialParams = []string{"app_id", "app_key", "api_key", "key"}

// fingerprint returns the dedup key for a task: stage plus the normalized
// URL with credential parameters removed, query sorted, and fragment
// dropped.
func fingerprint(t *Task) string {
	parsed, err := url.Parse(t.URL)
	if err != nil {
		return string(t.Stage) + "|" + t.URL
	}

	params := parsed.Query()
	for _, key := range credentialParams {
		params.Del(key)
	}
	parsed.RawQuery = params.Encode() // Encode sorts keys
	parsed.Fragment = ""
	parsed.Host = strings.ToLower(parsed.Host)

	return string(t.Stage) + "|" + parsed.String()
}

// domainOf extracts the politeness domain for a task URL
func domainOf(taskURL string) string {
	parsed, err := url.Parse(taskURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// taskHeap orders tasks by descending priority, FIFO within equal
// priorities.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*Task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return task
}
