package service

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/chatrouter/imessage-channel/internal/biz/domain"
	"github.com/chatrouter/imessage-channel/internal/biz/repo"
)

// CursorKey is the router-state key holding the last processed ROWID.
const CursorKey = "imessage_last_rowid"

// SyncOptions carries the per-deployment knobs of the sync engine.
type SyncOptions struct {
	AssistantName string
	HasOwnNumber  bool
	BatchSize     int
}

// SyncEngine drains new chat.db rows past a durable cursor and hands them
// to the router. At most one poll cycle runs at a time; a tick that lands
// while a cycle is in flight is a no-op.
type SyncEngine struct {
	chatLog repo.ChatLogRepo
	state   repo.StateRepo
	hooks   repo.RouterHooks
	opts    SyncOptions
	log     *zap.SugaredLogger

	lastRowID atomic.Int64
	polling   atomic.Bool
}

// NewSyncEngine creates a sync engine over an open chat log.
func NewSyncEngine(chatLog repo.ChatLogRepo, state repo.StateRepo, hooks repo.RouterHooks, opts SyncOptions, log *zap.SugaredLogger) *SyncEngine {
	return &SyncEngine{
		chatLog: chatLog,
		state:   state,
		hooks:   hooks,
		opts:    opts,
		log:     log,
	}
}

// InitCursor loads the persisted cursor. When the value is absent or not a
// valid non-negative integer it reseeds from the current log head, so a
// fresh install never replays history and a corrupted value self-heals.
func (e *SyncEngine) InitCursor(ctx context.Context) error {
	stored, err := e.state.Get(CursorKey)
	if err != nil {
		return fmt.Errorf("failed to read cursor: %w", err)
	}
	if stored != "" {
		parsed, err := strconv.ParseInt(stored, 10, 64)
		if err == nil && parsed >= 0 {
			e.lastRowID.Store(parsed)
			return nil
		}
		e.log.Warnw("stored cursor is unusable, reseeding", "value", stored)
	}

	maxRowID, err := e.chatLog.MaxRowID(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed cursor: %w", err)
	}
	e.lastRowID.Store(maxRowID)
	if err := e.state.Set(CursorKey, strconv.FormatInt(maxRowID, 10)); err != nil {
		return fmt.Errorf("failed to persist seeded cursor: %w", err)
	}
	e.log.Infow("cursor seeded", "last_rowid", maxRowID)
	return nil
}

// LastRowID returns the in-memory cursor position.
func (e *SyncEngine) LastRowID() int64 {
	return e.lastRowID.Load()
}

// Poll runs one polling cycle: fetch rows past the cursor in bounded
// batches, emit events, and persist the cursor once per batch. The cursor
// is advanced past every fetched row, including unrouteable ones.
func (e *SyncEngine) Poll(ctx context.Context) error {
	if !e.polling.CompareAndSwap(false, true) {
		return nil
	}
	defer e.polling.Store(false)

	for {
		rows, err := e.chatLog.FetchAfter(ctx, e.lastRowID.Load(), e.opts.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to fetch new messages: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		for i := range rows {
			e.processRow(ctx, &rows[i])
			e.lastRowID.Store(rows[i].MessageRowID)
		}

		if err := e.state.Set(CursorKey, strconv.FormatInt(e.lastRowID.Load(), 10)); err != nil {
			return fmt.Errorf("failed to persist cursor: %w", err)
		}

		if len(rows) < e.opts.BatchSize {
			return nil
		}
	}
}

// processRow classifies one log row and emits metadata plus, for
// registered chats, the inbound message. Row-level failures are isolated
// so a single bad row never aborts the batch.
func (e *SyncEngine) processRow(ctx context.Context, row *domain.LogRow) {
	participants, err := e.chatLog.ParticipantCount(ctx, row.ChatRowID)
	if err != nil {
		e.log.Warnw("failed to count participants", "chat_rowid", row.ChatRowID, "error", err)
	}

	group := domain.IsGroupChat(row.ChatGUID, participants)
	chatKey := domain.DeriveChatKey(group, row.ChatGUID, row.ChatRowID, row.SenderHandle)
	if chatKey == "" {
		// Unrouteable history must not block progress.
		return
	}
	chatJID := domain.ChatJID(chatKey)

	timestamp := domain.NowISO()
	if row.AppleDateRaw > 0 {
		timestamp = domain.AppleTimeToISO(row.AppleDateRaw)
	}

	e.hooks.OnChatMetadata(chatJID, timestamp, row.ChatDisplayName, domain.ChannelName, group)

	if _, registered := e.hooks.RegisteredGroups()[chatJID]; !registered {
		return
	}

	sender := row.SenderHandle
	if sender == "" {
		if row.IsFromMe {
			sender = "me"
		} else {
			sender = "unknown"
		}
	}

	id := row.MessageGUID
	if id == "" {
		id = strconv.FormatInt(row.MessageRowID, 10)
	}

	e.hooks.OnInboundMessage(chatJID, domain.Message{
		ID:           id,
		ChatJID:      chatJID,
		Sender:       sender,
		SenderName:   sender,
		Content:      row.Text,
		Timestamp:    timestamp,
		IsFromMe:     row.IsFromMe,
		IsBotMessage: domain.IsBotMessage(e.opts.HasOwnNumber, row.IsFromMe, row.Text, e.opts.AssistantName),
	})
}
