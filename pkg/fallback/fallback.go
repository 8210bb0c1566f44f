// Package fallback produces canned narration when no live or cached answer
// is available. Output depends only on the input text.
package fallback

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Intent is one row of the response table.
type Intent struct {
	Name string
	// Exact matches only when it is the whole normalized input.
	Exact []string
	// Prefixes match the start of the normalized input.
	Prefixes []string
	// Keywords match any whole word of the input.
	Keywords []string
	Variants []string
}

var intents = []Intent{
	{
		Name:     "look",
		Exact:    []string{"l"},
		Prefixes: []string{"look", "examine", "inspect", "search"},
		Keywords: []string{"around", "look", "examine"},
		Variants: []string{
			"You take in your surroundings. Nothing seems to have changed since you last looked.",
			"Shadows pool in the corners. The place is as you remember it.",
			"You look around carefully, but nothing new catches your eye.",
		},
	},
	{
		Name:     "status",
		Prefixes: []string{"status", "stats", "health", "hp"},
		Keywords: []string{"status", "health", "wounds"},
		Variants: []string{
			"You pause to catch your breath and take stock of yourself.",
			"You check yourself over. You are still standing, and that will have to do.",
		},
	},
	{
		Name:     "inventory",
		Exact:    []string{"i"},
		Prefixes: []string{"inventory", "inv", "bag", "pack"},
		Keywords: []string{"inventory", "items", "carrying", "backpack"},
		Variants: []string{
			"You rummage through your pack. Everything is where you left it.",
			"You pat down your belongings, reassured by their familiar weight.",
		},
	},
	{
		Name:     "talk",
		Prefixes: []string{"talk", "say", "ask", "speak", "tell", "greet"},
		Keywords: []string{"talk", "speak", "hello", "greet"},
		Variants: []string{
			"Your words hang in the air. For now, no answer comes.",
			"You speak, but the reply is lost in the murmur of the world around you.",
			"A moment of silence follows your words.",
		},
	},
	{
		Name:     "move",
		Prefixes: []string{"go", "walk", "run", "move", "enter", "leave", "climb", "north", "south", "east", "west", "up", "down"},
		Keywords: []string{"north", "south", "east", "west", "door", "path", "stairs"},
		Variants: []string{
			"You set off, footsteps echoing softly as you go.",
			"You move onward. The way ahead is quiet.",
			"You press on, alert to every sound.",
		},
	},
	{
		Name:     "take",
		Prefixes: []string{"take", "get", "grab", "pick", "collect", "loot"},
		Keywords: []string{"take", "grab", "pick"},
		Variants: []string{
			"You reach out, hands closing around it.",
			"You gather it up and stow it away.",
		},
	},
	{
		Name:     "use",
		Prefixes: []string{"use", "open", "drink", "eat", "read", "light", "equip", "wear"},
		Keywords: []string{"use", "open", "drink", "read"},
		Variants: []string{
			"You try it. Something shifts, though its effect is not yet clear.",
			"You put it to use and wait to see what happens.",
		},
	},
	{
		Name:     "attack",
		Prefixes: []string{"attack", "fight", "hit", "strike", "kill", "shoot", "cast"},
		Keywords: []string{"attack", "fight", "sword", "strike"},
		Variants: []string{
			"You ready yourself and strike. The clash rings out.",
			"Steel meets resistance. The fight is far from over.",
			"You lunge forward, every muscle tense.",
		},
	},
	{
		Name:     "help",
		Prefixes: []string{"help", "?", "hint", "commands"},
		Keywords: []string{"help", "hint", "stuck"},
		Variants: []string{
			"Try looking around, checking your inventory, or heading in a new direction.",
			"When in doubt: look, take, use, talk, or move on.",
		},
	},
}

var defaults = []string{
	"The world holds its breath for a moment, then carries on.",
	"Somewhere in the distance, something stirs. You continue.",
	"Time passes quietly. Your choice will matter soon enough.",
}

// Responder answers from the fixed intent table.
type Responder struct {
	intents  []Intent
	defaults []string
}

// New returns a Responder over the built-in table.
func New() *Responder {
	return &Responder{intents: intents, defaults: defaults}
}

// Match returns the intent input maps to, or "" if none does.
func (r *Responder) Match(input string) string {
	if in := r.match(normalize(input)); in != nil {
		return in.Name
	}
	return ""
}

// Respond always returns non-empty text. The same input always gets the
// same variant.
func (r *Responder) Respond(input string) string {
	norm := normalize(input)
	variants := r.defaults
	if in := r.match(norm); in != nil {
		variants = in.Variants
	}
	return variants[xxhash.Sum64String(norm)%uint64(len(variants))]
}

func (r *Responder) match(norm string) *Intent {
	if norm == "" {
		return nil
	}
	for i := range r.intents {
		for _, e := range r.intents[i].Exact {
			if norm == e {
				return &r.intents[i]
			}
		}
	}
	norm = stripSubject(norm)
	// Prefixes win over keywords so "look at the sword" is a look, not an attack.
	padded := norm + " "
	for i := range r.intents {
		for _, p := range r.intents[i].Prefixes {
			if strings.HasPrefix(padded, p) && wordBoundary(padded, p) {
				return &r.intents[i]
			}
		}
	}
	words := strings.Fields(norm)
	for i := range r.intents {
		for _, k := range r.intents[i].Keywords {
			for _, w := range words {
				if w == k {
					return &r.intents[i]
				}
			}
		}
	}
	return nil
}

// subjectLeads are first-person openers dropped before prefix matching,
// longest first.
var subjectLeads = []string{"i want to ", "i try to ", "i will ", "i "}

// stripSubject turns "i want to open the door" into "open the door".
func stripSubject(norm string) string {
	for _, lead := range subjectLeads {
		if rest, ok := strings.CutPrefix(norm, lead); ok {
			return rest
		}
	}
	return norm
}

// wordBoundary reports whether prefix p ends at a word boundary of s.
func wordBoundary(s, p string) bool {
	if strings.HasSuffix(p, " ") || len(s) == len(p) {
		return true
	}
	c := s[len(p)]
	return c == ' ' || c == '.' || c == '!' || c == '?' || c == ','
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
