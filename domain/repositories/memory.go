package repositories

import (
	"context"

	"github.com/lumenlabs/lumen-server/domain/entities"
)

// MemoryService persists completed conversation entries and serves
// retrieval queries over a user's history.
type MemoryService interface {
	// SaveConversation stores a finished entry (photo included when
	// present) and returns its storage id.
	SaveConversation(ctx context.Context, entry *entities.ConversationEntry) (string, error)
	// Search returns entries for the user whose question or response
	// matches the query.
	Search(ctx context.Context, userID, query string) ([]*entities.ConversationEntry, error)
	// Recent returns the user's most recent entries, newest first.
	Recent(ctx context.Context, userID string, limit int) ([]*entities.ConversationEntry, error)
}
