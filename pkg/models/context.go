package models

// InventoryItem is a single item a player carries.
type InventoryItem struct {
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category,omitempty" yaml:"category"`
	Quantity int    `json:"quantity,omitempty" yaml:"quantity"`
}

// Event is a recent game event. Slices of events are ordered oldest first.
type Event struct {
	Category string `json:"category" yaml:"category"`
	Text     string `json:"text" yaml:"text"`
}

// HistoryMessage is one turn of conversation history, ordered oldest first.
type HistoryMessage struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// RawContext is the caller-supplied state snapshot for a single request.
// It is read-only to the gateway.
type RawContext struct {
	SessionID  string            `json:"session_id,omitempty" yaml:"session_id"`
	Location   string            `json:"location,omitempty" yaml:"location"`
	Inventory  []InventoryItem   `json:"inventory,omitempty" yaml:"inventory"`
	Events     []Event           `json:"events,omitempty" yaml:"events"`
	History    []HistoryMessage  `json:"history,omitempty" yaml:"history"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes"`
}

// OptimizedContext is the bounded, deterministic derivative of a RawContext.
// Payload is its canonical serialized form and the input to cache keys.
type OptimizedContext struct {
	Location         string            `json:"location,omitempty"`
	Inventory        []InventoryItem   `json:"inventory,omitempty"`
	InventorySummary map[string]int    `json:"inventory_summary,omitempty"`
	Events           []Event           `json:"events,omitempty"`
	History          []HistoryMessage  `json:"history,omitempty"`
	Attributes       map[string]string `json:"attributes,omitempty"`

	Payload   string `json:"-"`
	Truncated bool   `json:"-"`
}
