package cache

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key derives the cache key for one request. Input is trimmed and
// lowercased so trivially different phrasings share an entry. An empty
// session leaves the key unscoped.
func Key(endpoint, payload, input, session string) string {
	d := xxhash.New()
	_, _ = d.WriteString(endpoint)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(payload)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(strings.ToLower(strings.TrimSpace(input)))
	if session != "" {
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(session)
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
