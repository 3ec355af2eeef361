package assistant

import (
	"strings"
	"testing"
	"time"

	"github.com/lumenlabs/lumen-server/domain/entities"
)

func completedEntry(userID, question, response string) *entities.ConversationEntry {
	e := entities.NewConversationEntry(userID, question)
	if err := e.Complete(response, nil, 100*time.Millisecond); err != nil {
		panic(err)
	}
	return e
}

// Appending beyond the cap keeps exactly the cap most-recent entries.
func TestHistoryBoundedEviction(t *testing.T) {
	h := NewHistory(5)
	var ids []string
	for i := 0; i < 12; i++ {
		e := completedEntry("u1", "q", "a")
		ids = append(ids, e.ID)
		h.Append(e)
	}

	recent := h.Recent("u1", 0)
	if len(recent) != 5 {
		t.Fatalf("expected 5 retained entries, got %d", len(recent))
	}
	// Most recent first, oldest evicted
	for i, e := range recent {
		if want := ids[len(ids)-1-i]; e.ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, e.ID)
		}
	}
	if _, ok := h.Get(ids[0]); ok {
		t.Error("oldest entry should have been evicted")
	}
}

// Context uses completed entries only, capped at n, oldest first.
func TestHistoryBuildContext(t *testing.T) {
	h := NewHistory(50)
	h.Append(completedEntry("u1", "first question", "first answer"))
	h.Append(completedEntry("u1", "second question", "second answer"))

	pending := entities.NewConversationEntry("u1", "pending question")
	h.Append(pending)

	failed := entities.NewConversationEntry("u1", "failed question")
	if err := failed.Fail("nope", time.Millisecond); err != nil {
		t.Fatal(err)
	}
	h.Append(failed)

	ctx := h.BuildContext("u1", 5)
	if strings.Contains(ctx, "pending question") {
		t.Error("processing entries must not appear in context")
	}
	if strings.Contains(ctx, "failed question") {
		t.Error("error entries must not appear in context")
	}
	if !strings.Contains(ctx, "first answer") || !strings.Contains(ctx, "second answer") {
		t.Errorf("completed entries missing from context: %q", ctx)
	}
	if strings.Index(ctx, "first question") > strings.Index(ctx, "second question") {
		t.Error("context should read oldest first")
	}
	if !strings.Contains(ctx, "ago") && !strings.Contains(ctx, "just now") {
		t.Errorf("expected relative time labels, got %q", ctx)
	}
}

func TestHistoryBuildContextLimit(t *testing.T) {
	h := NewHistory(50)
	for i := 0; i < 10; i++ {
		h.Append(completedEntry("u1", "q", "a"))
	}
	ctx := h.BuildContext("u1", 3)
	if got := strings.Count(ctx, "Q: "); got != 3 {
		t.Errorf("expected 3 context entries, got %d", got)
	}
}

// The dashboard projection strips photo bytes and substitutes a ref.
func TestHistorySnapshotSanitized(t *testing.T) {
	h := NewHistory(50)
	photo := &entities.Photo{MimeType: "image/jpeg", Data: []byte{1, 2, 3}}
	e := entities.NewConversationEntry("u1", "what is this")
	if err := e.Complete("a widget", photo, time.Second); err != nil {
		t.Fatal(err)
	}
	h.Append(e)
	h.Append(completedEntry("u2", "other", "answer"))

	snap := h.Snapshot()
	if snap.ActiveUsers != 2 {
		t.Errorf("expected 2 active users, got %d", snap.ActiveUsers)
	}
	if snap.LastActivityAt.IsZero() {
		t.Error("expected last activity timestamp")
	}

	var withPhoto *SanitizedEntry
	for i := range snap.Entries {
		if snap.Entries[i].HasPhoto {
			withPhoto = &snap.Entries[i]
		}
	}
	if withPhoto == nil {
		t.Fatal("expected a sanitized entry with a photo flag")
	}
	if withPhoto.PhotoRef != e.ID {
		t.Errorf("expected photo ref %s, got %s", e.ID, withPhoto.PhotoRef)
	}

	// Raw payload remains resolvable through the photo lookup only
	got, ok := h.Photo(e.ID)
	if !ok || len(got.Data) != 3 {
		t.Error("photo payload should be resolvable by reference")
	}
}

func TestHistoryPhotoMissing(t *testing.T) {
	h := NewHistory(50)
	h.Append(completedEntry("u1", "q", "a"))
	if _, ok := h.Photo("nope"); ok {
		t.Error("unknown reference must not resolve")
	}
}
