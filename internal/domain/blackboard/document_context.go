// Package blackboard implements the Shared Document Context: the
// in-memory store every agent in a squad reads from and writes to during a
// single workflow run.
package blackboard

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// DocumentEntry wraps an agent's output with the metadata needed to
// attribute and order it inside a loop.
type DocumentEntry struct {
	Content    any       `json:"content"`
	Type       string    `json:"type"`
	CreatedAt  time.Time `json:"created_at"`
	LoopNumber int       `json:"loop_number"`
	Agent      string    `json:"agent"`
}

// Metadata tracks aggregate counters over the context's lifetime.
type Metadata struct {
	CreatedAt      time.Time `json:"created_at"`
	TotalDocuments int       `json:"total_documents"`
	TotalLoops     int       `json:"total_loops"`
}

// SharedDocumentContext is the central blackboard every agent reads and
// writes against for the duration of a workflow run. It is safe for
// concurrent use: the parallel phases of an Evolution Loop iteration all
// write through the same instance.
type SharedDocumentContext struct {
	mu sync.RWMutex

	currentLoopDocuments map[string]DocumentEntry
	history              []map[string]DocumentEntry
	currentLoopNumber    int
	metadata             Metadata
}

// New returns an empty SharedDocumentContext ready for loop 0.
func New() *SharedDocumentContext {
	return &SharedDocumentContext{
		currentLoopDocuments: make(map[string]DocumentEntry),
		metadata:             Metadata{CreatedAt: time.Now()},
	}
}

// AddDocument records agentName's output for the current loop, replacing
// any prior document that agent produced this loop.
func (c *SharedDocumentContext) AddDocument(agentName string, content any, documentType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentLoopDocuments[agentName] = DocumentEntry{
		Content:    content,
		Type:       documentType,
		CreatedAt:  time.Now(),
		LoopNumber: c.currentLoopNumber,
		Agent:      agentName,
	}
	c.metadata.TotalDocuments++
}

// GetDocument returns the document agentName produced in the current loop,
// if any.
func (c *SharedDocumentContext) GetDocument(agentName string) (DocumentEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.currentLoopDocuments[agentName]
	return d, ok
}

// GetAllDocuments returns a copy of every document produced in the current
// loop.
func (c *SharedDocumentContext) GetAllDocuments() map[string]DocumentEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]DocumentEntry, len(c.currentLoopDocuments))
	for k, v := range c.currentLoopDocuments {
		out[k] = v
	}
	return out
}

// GetDocumentsByType filters the current loop's documents down to a single
// document type.
func (c *SharedDocumentContext) GetDocumentsByType(documentType string) map[string]DocumentEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]DocumentEntry)
	for k, v := range c.currentLoopDocuments {
		if v.Type == documentType {
			out[k] = v
		}
	}
	return out
}

// StartNewLoop archives the current loop's documents to history, resets the
// working set, and increments the loop counter.
func (c *SharedDocumentContext) StartNewLoop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.currentLoopDocuments) > 0 {
		c.history = append(c.history, c.currentLoopDocuments)
	}

	c.currentLoopDocuments = make(map[string]DocumentEntry)
	c.currentLoopNumber++
	c.metadata.TotalLoops = c.currentLoopNumber
}

// CurrentLoop returns the loop number currently being written to.
func (c *SharedDocumentContext) CurrentLoop() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentLoopNumber
}

// History returns every archived loop, in order.
func (c *SharedDocumentContext) History() []map[string]DocumentEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]map[string]DocumentEntry, len(c.history))
	copy(out, c.history)
	return out
}

// HistoryLoop returns the archived documents for a single loop index, or
// false if loopNumber is out of range.
func (c *SharedDocumentContext) HistoryLoop(loopNumber int) (map[string]DocumentEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if loopNumber < 0 || loopNumber >= len(c.history) {
		return nil, false
	}
	return c.history[loopNumber], true
}

// aiDocumentView is the shape a single document renders as inside
// RenderForModel's current-loop section.
type aiDocumentView struct {
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Content   any    `json:"content"`
}

// aiHistoryDocumentView is the shape a single archived document renders as
// inside RenderForModel's history section — content is truncated, never
// summarized by a model.
type aiHistoryDocumentView struct {
	Type           string `json:"type"`
	ContentSummary string `json:"content_summary"`
}

type aiHistoryLoopView struct {
	LoopNumber int                              `json:"loop_number"`
	Documents  map[string]aiHistoryDocumentView `json:"documents"`
}

type aiContextView struct {
	CurrentLoop      int                        `json:"current_loop"`
	CurrentDocuments map[string]aiDocumentView  `json:"current_documents"`
	PreviousLoops    []aiHistoryLoopView        `json:"previous_loops,omitempty"`
}

// RenderForModel produces the JSON context block an agent's prompt
// embeds. When includeHistory is true, up to maxHistoryLoops of the most
// recent archived loops are appended with their content deterministically
// truncated (never re-summarized by a model call).
func (c *SharedDocumentContext) RenderForModel(includeHistory bool, maxHistoryLoops int) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	view := aiContextView{
		CurrentLoop:      c.currentLoopNumber,
		CurrentDocuments: make(map[string]aiDocumentView, len(c.currentLoopDocuments)),
	}
	for agentName, doc := range c.currentLoopDocuments {
		view.CurrentDocuments[agentName] = aiDocumentView{
			Type:      doc.Type,
			CreatedAt: doc.CreatedAt.Format(time.RFC3339),
			Content:   doc.Content,
		}
	}

	if includeHistory && len(c.history) > 0 {
		startIdx := len(c.history) - maxHistoryLoops
		if startIdx < 0 {
			startIdx = 0
		}
		for idx := startIdx; idx < len(c.history); idx++ {
			loopView := aiHistoryLoopView{
				LoopNumber: idx,
				Documents:  make(map[string]aiHistoryDocumentView, len(c.history[idx])),
			}
			for agentName, doc := range c.history[idx] {
				loopView.Documents[agentName] = aiHistoryDocumentView{
					Type:           doc.Type,
					ContentSummary: summarizeContent(doc.Content, 500),
				}
			}
			view.PreviousLoops = append(view.PreviousLoops, loopView)
		}
	}

	out, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// summarizeContent deterministically shrinks content for history rendering:
// strings are hard-truncated, a plain map[string]any keeps only its first
// maxDictKeys keys (by sorted key order, for determinism), everything else
// (named map types such as an agent's Output included) is stringified and
// truncated. This never invokes a model — it exists purely to bound
// prompt size.
func summarizeContent(content any, maxLength int) string {
	switch v := content.(type) {
	case string:
		if len(v) > maxLength {
			return v[:maxLength] + "..."
		}
		return v
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		const maxDictKeys = 5
		if len(keys) > maxDictKeys {
			keys = keys[:maxDictKeys]
		}
		summary := make(map[string]any, len(keys))
		for _, k := range keys {
			summary[k] = v[k]
		}
		b, err := json.Marshal(summary)
		if err != nil {
			return truncateString(err.Error(), maxLength)
		}
		return truncateString(string(b), maxLength)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return truncateString(err.Error(), maxLength)
		}
		return truncateString(string(b), maxLength)
	}
}

func truncateString(s string, maxLength int) string {
	if len(s) > maxLength {
		return s[:maxLength]
	}
	return s
}

// AnalysisSummary reports the current loop's progress: how many documents
// have been produced, by which agents, broken down by document type.
type AnalysisSummary struct {
	TotalLoops          int            `json:"total_loops"`
	TotalDocuments      int            `json:"total_documents"`
	DocumentsCreated    int            `json:"documents_created"`
	AgentsExecuted      []string       `json:"agents_executed"`
	DocumentTypes       map[string]int `json:"document_types"`
}

// GetAnalysisSummary summarizes progress so far across the whole run.
func (c *SharedDocumentContext) GetAnalysisSummary() AnalysisSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := AnalysisSummary{
		TotalLoops:       c.currentLoopNumber,
		TotalDocuments:   c.metadata.TotalDocuments,
		DocumentsCreated: len(c.currentLoopDocuments),
		AgentsExecuted:   make([]string, 0, len(c.currentLoopDocuments)),
		DocumentTypes:    make(map[string]int),
	}
	for agentName, doc := range c.currentLoopDocuments {
		summary.AgentsExecuted = append(summary.AgentsExecuted, agentName)
		summary.DocumentTypes[doc.Type]++
	}
	sort.Strings(summary.AgentsExecuted)
	return summary
}

// Clear discards all documents and history, resetting the context to its
// zero state.
func (c *SharedDocumentContext) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentLoopDocuments = make(map[string]DocumentEntry)
	c.history = nil
	c.currentLoopNumber = 0
	c.metadata = Metadata{CreatedAt: time.Now()}
}

// Snapshot is the full exportable state of a SharedDocumentContext, used
// for Export/Import round-tripping.
type Snapshot struct {
	Metadata             Metadata                   `json:"metadata"`
	CurrentLoopNumber    int                         `json:"current_loop_number"`
	CurrentLoopDocuments map[string]DocumentEntry    `json:"current_loop_documents"`
	History              []map[string]DocumentEntry  `json:"all_documents_history"`
}

// Export returns the full state, suitable for persistence.
func (c *SharedDocumentContext) Export() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Copies are taken under this single read lock; calling GetAllDocuments
	// or History here would re-acquire it and can deadlock behind a writer.
	docs := make(map[string]DocumentEntry, len(c.currentLoopDocuments))
	for k, v := range c.currentLoopDocuments {
		docs[k] = v
	}
	history := make([]map[string]DocumentEntry, len(c.history))
	copy(history, c.history)

	return Snapshot{
		Metadata:             c.metadata,
		CurrentLoopNumber:    c.currentLoopNumber,
		CurrentLoopDocuments: docs,
		History:              history,
	}
}

// Import replaces the context's state with a previously exported snapshot.
func (c *SharedDocumentContext) Import(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metadata = snap.Metadata
	c.currentLoopNumber = snap.CurrentLoopNumber
	c.currentLoopDocuments = snap.CurrentLoopDocuments
	if c.currentLoopDocuments == nil {
		c.currentLoopDocuments = make(map[string]DocumentEntry)
	}
	c.history = snap.History
}
