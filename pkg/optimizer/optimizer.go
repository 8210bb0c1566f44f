// Package optimizer shrinks a caller's state snapshot into a bounded,
// deterministic payload suitable for hashing and transmission.
package optimizer

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/pario-ai/narrator/pkg/config"
	"github.com/pario-ai/narrator/pkg/models"
)

// miscCategory groups inventory items that carry no category.
const miscCategory = "misc"

// Optimizer derives OptimizedContext values from RawContext values.
// It holds no mutable state and is safe for concurrent use.
type Optimizer struct {
	maxChars           int
	inventoryThreshold int
	eventLimit         int
	eventCategories    map[string]bool
	historyMessages    int
	historyTokens      int
}

// New creates an Optimizer from the context configuration.
func New(cfg config.ContextConfig) *Optimizer {
	cats := make(map[string]bool, len(cfg.EventCategories))
	for _, c := range cfg.EventCategories {
		cats[strings.ToLower(strings.TrimSpace(c))] = true
	}
	return &Optimizer{
		maxChars:           cfg.MaxChars,
		inventoryThreshold: cfg.InventoryThreshold,
		eventLimit:         cfg.EventLimit,
		eventCategories:    cats,
		historyMessages:    cfg.HistoryMessages,
		historyTokens:      cfg.HistoryTokens,
	}
}

// Optimize applies the reduction rules in order: inventory summary, event
// filtering, history budget, then whole-field truncation until the payload
// fits the character budget. It never fails.
func (o *Optimizer) Optimize(raw models.RawContext) models.OptimizedContext {
	out := models.OptimizedContext{
		Location:   raw.Location,
		Attributes: maps.Clone(raw.Attributes),
	}

	if len(raw.Inventory) > o.inventoryThreshold {
		out.InventorySummary = summarize(raw.Inventory)
	} else {
		out.Inventory = slices.Clone(raw.Inventory)
	}

	out.Events = o.filterEvents(raw.Events)
	out.History = o.trimHistory(raw.History)

	payload := encode(out)
	for runeLen(payload) > o.maxChars {
		if !dropLeastRecent(&out) {
			// Nothing left to drop; only the empty skeleton remains.
			payload = fitSkeleton(payload, o.maxChars)
			out.Truncated = true
			break
		}
		out.Truncated = true
		payload = encode(out)
	}
	out.Payload = payload
	return out
}

func summarize(items []models.InventoryItem) map[string]int {
	summary := make(map[string]int)
	for _, it := range items {
		cat := strings.ToLower(strings.TrimSpace(it.Category))
		if cat == "" {
			cat = miscCategory
		}
		n := it.Quantity
		if n <= 0 {
			n = 1
		}
		summary[cat] += n
	}
	return summary
}

func (o *Optimizer) filterEvents(events []models.Event) []models.Event {
	var kept []models.Event
	for _, e := range events {
		if o.eventCategories[strings.ToLower(strings.TrimSpace(e.Category))] {
			kept = append(kept, e)
		}
	}
	if len(kept) > o.eventLimit {
		kept = kept[len(kept)-o.eventLimit:]
	}
	return slices.Clone(kept)
}

func (o *Optimizer) trimHistory(history []models.HistoryMessage) []models.HistoryMessage {
	if len(history) > o.historyMessages {
		history = history[len(history)-o.historyMessages:]
	}
	total := 0
	for _, m := range history {
		total += estimateTokens(m.Content)
	}
	// The most recent message always survives this stage; the character
	// budget pass may still drop it.
	for len(history) > 1 && total > o.historyTokens {
		total -= estimateTokens(history[0].Content)
		history = history[1:]
	}
	return slices.Clone(history)
}

// estimateTokens approximates model tokens as one per four runes.
func estimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

// dropLeastRecent removes one whole field, oldest content first. It reports
// false once there is nothing left to remove. The newest history message
// outlives every event.
func dropLeastRecent(c *models.OptimizedContext) bool {
	switch {
	case len(c.History) > 1:
		c.History = c.History[1:]
	case len(c.Events) > 0:
		c.Events = c.Events[1:]
	case len(c.History) > 0:
		c.History = nil
	case len(c.Inventory) > 0:
		c.InventorySummary = summarize(c.Inventory)
		c.Inventory = nil
	case len(c.InventorySummary) > 0:
		keys := slices.Sorted(maps.Keys(c.InventorySummary))
		delete(c.InventorySummary, keys[len(keys)-1])
	case len(c.Attributes) > 0:
		keys := slices.Sorted(maps.Keys(c.Attributes))
		delete(c.Attributes, keys[len(keys)-1])
	case c.Location != "":
		c.Location = ""
	default:
		return false
	}
	return true
}

// encode renders the canonical JSON payload. Struct fields keep declaration
// order and map keys are sorted, so equal inputs give identical bytes.
func encode(c models.OptimizedContext) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return "{}"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func fitSkeleton(payload string, limit int) string {
	if runeLen(payload) <= limit {
		return payload
	}
	return ""
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
