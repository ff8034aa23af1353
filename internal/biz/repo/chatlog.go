package repo

import (
	"context"

	"github.com/chatrouter/imessage-channel/internal/biz/domain"
)

// ChatLogRepo is the read-only view of the Messages chat.db log
type ChatLogRepo interface {
	// MaxRowID returns the highest message ROWID, 0 for an empty log
	MaxRowID(ctx context.Context) (int64, error)

	// FetchAfter returns up to limit rows with ROWID strictly greater
	// than after, ordered by ROWID ascending
	FetchAfter(ctx context.Context, after int64, limit int) ([]domain.LogRow, error)

	// ParticipantCount returns the number of handles joined to a chat
	ParticipantCount(ctx context.Context, chatRowID int64) (int, error)

	// Close closes the database handle
	Close() error
}
