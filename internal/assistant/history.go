package assistant

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lumenlabs/lumen-server/domain/entities"
)

// History is the bounded, ordered, per-user conversation store. Entries
// are most-recent-first; the oldest entry past the cap is evicted. It
// backs both prompt-context construction and the dashboard projection.
type History struct {
	cap int

	mu           sync.RWMutex
	entries      map[string][]*entities.ConversationEntry
	lastActivity time.Time
}

// SanitizedEntry is the dashboard view of an entry: photo bytes are
// replaced with a reference id resolved via the photo endpoint.
type SanitizedEntry struct {
	ID               string               `json:"id"`
	Timestamp        time.Time            `json:"timestamp"`
	UserID           string               `json:"user_id"`
	Question         string               `json:"question"`
	Response         string               `json:"response"`
	HasPhoto         bool                 `json:"has_photo"`
	PhotoRef         string               `json:"photo_ref,omitempty"`
	ProcessingTimeMs int64                `json:"processing_time_ms"`
	Status           entities.EntryStatus `json:"status"`
	Category         string               `json:"category,omitempty"`
	Location         string               `json:"location,omitempty"`
}

// Snapshot is the read-only dashboard state
type Snapshot struct {
	Entries        []SanitizedEntry `json:"entries"`
	ActiveUsers    int              `json:"active_users"`
	LastActivityAt time.Time        `json:"last_activity_at"`
}

// NewHistory creates a store retaining at most cap entries per user
func NewHistory(cap int) *History {
	if cap <= 0 {
		cap = DefaultConfig().HistoryCap
	}
	return &History{
		cap:     cap,
		entries: make(map[string][]*entities.ConversationEntry),
	}
}

// Append inserts the entry at the head of the user's history, evicting
// the oldest entry beyond the cap.
func (h *History) Append(entry *entities.ConversationEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := append([]*entities.ConversationEntry{entry}, h.entries[entry.UserID]...)
	if len(list) > h.cap {
		list = list[:h.cap]
	}
	h.entries[entry.UserID] = list
	h.lastActivity = time.Now()
}

// Touch records activity without appending (e.g. transcription traffic)
func (h *History) Touch() {
	h.mu.Lock()
	h.lastActivity = time.Now()
	h.mu.Unlock()
}

// Get returns the entry with the given id, if retained
func (h *History) Get(id string) (*entities.ConversationEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, list := range h.entries {
		for _, e := range list {
			if e.ID == id {
				return e, true
			}
		}
	}
	return nil, false
}

// Photo returns the raw photo payload for an entry id
func (h *History) Photo(id string) (*entities.Photo, bool) {
	entry, ok := h.Get(id)
	if !ok || entry.Photo == nil {
		return nil, false
	}
	return entry.Photo, true
}

// Recent returns up to limit of the user's entries, most recent first
func (h *History) Recent(userID string, limit int) []*entities.ConversationEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	list := h.entries[userID]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]*entities.ConversationEntry, len(list))
	copy(out, list)
	return out
}

// BuildContext formats the user's last n completed exchanges, oldest
// first, for grounding follow-up prompts. Entries still processing or
// in error are excluded.
func (h *History) BuildContext(userID string, n int) string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var picked []*entities.ConversationEntry
	for _, e := range h.entries[userID] {
		if e.Status != entities.EntryStatusCompleted {
			continue
		}
		picked = append(picked, e)
		if len(picked) == n {
			break
		}
	}
	if len(picked) == 0 {
		return ""
	}

	var b strings.Builder
	for i := len(picked) - 1; i >= 0; i-- {
		e := picked[i]
		fmt.Fprintf(&b, "[%s] Q: %s\nA: %s\n", timeAgo(e.Timestamp), e.Question, e.Response)
	}
	return b.String()
}

// Snapshot returns the sanitized dashboard state: every retained entry
// across users (newest first per user), with photo payloads stripped.
func (h *History) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snap := Snapshot{
		ActiveUsers:    len(h.entries),
		LastActivityAt: h.lastActivity,
	}
	for _, list := range h.entries {
		for _, e := range list {
			snap.Entries = append(snap.Entries, sanitize(e))
		}
	}
	return snap
}

func sanitize(e *entities.ConversationEntry) SanitizedEntry {
	s := SanitizedEntry{
		ID:               e.ID,
		Timestamp:        e.Timestamp,
		UserID:           e.UserID,
		Question:         e.Question,
		Response:         e.Response,
		HasPhoto:         e.HasPhoto,
		ProcessingTimeMs: e.ProcessingTimeMs,
		Status:           e.Status,
		Category:         e.Category,
		Location:         e.Location,
	}
	if e.HasPhoto {
		s.PhotoRef = e.ID
	}
	return s
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < 5*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}
