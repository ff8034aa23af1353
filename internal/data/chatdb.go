package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/chatrouter/imessage-channel/internal/biz/domain"
	"github.com/chatrouter/imessage-channel/internal/biz/repo"
)

// fetchQuery joins messages with their owning chat and sender handle. Rows
// are keyed by message ROWID, which chat.db assigns in insertion order.
const fetchQuery = `
	SELECT
		m.ROWID AS message_rowid,
		m.guid AS message_guid,
		m.text AS text,
		m.is_from_me AS is_from_me,
		m.date AS apple_date_raw,
		h.id AS sender_handle,
		c.ROWID AS chat_rowid,
		c.guid AS chat_guid,
		c.display_name AS chat_display_name
	FROM message m
	JOIN chat_message_join cmj ON cmj.message_id = m.ROWID
	JOIN chat c ON c.ROWID = cmj.chat_id
	LEFT JOIN handle h ON h.ROWID = m.handle_id
	WHERE m.ROWID > ?
	ORDER BY m.ROWID ASC
	LIMIT ?
`

// chatLog is a read-only handle on the Messages chat.db. This system never
// writes to it.
type chatLog struct {
	db *sql.DB
}

// OpenChatLog opens chat.db read-only and verifies it is queryable. A
// missing file or denied access (no Full Disk Access grant) fails here
// rather than on the first poll.
func OpenChatLog(dbPath string) (repo.ChatLogRepo, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("failed to stat chat.db: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open chat.db: %w", err)
	}

	var one int
	if err := db.QueryRow(`SELECT 1`).Scan(&one); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to query chat.db: %w", err)
	}

	return &chatLog{db: db}, nil
}

// MaxRowID returns the highest message ROWID, 0 for an empty log.
func (c *chatLog) MaxRowID(ctx context.Context) (int64, error) {
	var maxRowID int64
	err := c.db.QueryRowContext(ctx,
		`SELECT IFNULL(MAX(ROWID), 0) FROM message`).Scan(&maxRowID)
	if err != nil {
		return 0, fmt.Errorf("failed to query max rowid: %w", err)
	}
	return maxRowID, nil
}

// FetchAfter returns up to limit rows strictly after the given ROWID.
func (c *chatLog) FetchAfter(ctx context.Context, after int64, limit int) ([]domain.LogRow, error) {
	rows, err := c.db.QueryContext(ctx, fetchQuery, after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages after %d: %w", after, err)
	}
	defer rows.Close()

	var result []domain.LogRow
	for rows.Next() {
		var (
			row          domain.LogRow
			guid         sql.NullString
			text         sql.NullString
			isFromMe     sql.NullInt64
			appleDateRaw sql.NullInt64
			senderHandle sql.NullString
			chatGUID     sql.NullString
			displayName  sql.NullString
		)
		if err := rows.Scan(
			&row.MessageRowID,
			&guid,
			&text,
			&isFromMe,
			&appleDateRaw,
			&senderHandle,
			&row.ChatRowID,
			&chatGUID,
			&displayName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		row.MessageGUID = guid.String
		row.Text = text.String
		row.IsFromMe = isFromMe.Int64 == 1
		row.AppleDateRaw = appleDateRaw.Int64
		row.SenderHandle = senderHandle.String
		row.ChatGUID = chatGUID.String
		row.ChatDisplayName = displayName.String
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}

	return result, nil
}

// ParticipantCount returns the number of handles joined to a chat.
func (c *chatLog) ParticipantCount(ctx context.Context, chatRowID int64) (int, error) {
	var count int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_handle_join WHERE chat_id = ?`, chatRowID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants for chat %d: %w", chatRowID, err)
	}
	return count, nil
}

// Close closes the database handle.
func (c *chatLog) Close() error {
	return c.db.Close()
}
