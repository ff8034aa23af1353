package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/chatrouter/imessage-channel/internal/biz/domain"
	"github.com/chatrouter/imessage-channel/internal/biz/repo"
	"github.com/chatrouter/imessage-channel/internal/conf"
)

var (
	// ErrNotConnected is returned by SendMessage before Connect succeeds.
	ErrNotConnected = errors.New("imessage channel is not connected")

	// ErrInvalidTarget is returned for malformed or foreign-scheme jids.
	ErrInvalidTarget = errors.New("invalid imessage target")
)

// ChatLogOpener opens the message log at a path. The indirection keeps the
// data layer out of this package and gives tests a seam.
type ChatLogOpener func(path string) (repo.ChatLogRepo, error)

// Channel is the iMessage channel facade: lifecycle, connectivity state,
// identifier ownership and the outbound send entry point.
type Channel struct {
	cfg      *conf.Config
	state    repo.StateRepo
	dispatch repo.DispatchRepo
	hooks    repo.RouterHooks
	openLog  ChatLogOpener
	log      *zap.SugaredLogger

	// goos is overridable in tests; Connect is a no-op off macOS
	goos string

	mu        sync.Mutex
	connected atomic.Bool
	chatLog   repo.ChatLogRepo
	engine    *SyncEngine
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewChannel creates the channel facade. Nothing is opened until Connect.
func NewChannel(cfg *conf.Config, state repo.StateRepo, dispatch repo.DispatchRepo, hooks repo.RouterHooks, openLog ChatLogOpener, log *zap.SugaredLogger) *Channel {
	return &Channel{
		cfg:      cfg,
		state:    state,
		dispatch: dispatch,
		hooks:    hooks,
		openLog:  openLog,
		log:      log,
		goos:     runtime.GOOS,
	}
}

// Name returns the channel tag.
func (c *Channel) Name() string {
	return domain.ChannelName
}

// Connect opens chat.db, initializes the cursor and starts the poll loop.
// Failures are logged and leave the channel disconnected rather than
// returned; callers must check IsConnected.
func (c *Channel) Connect(ctx context.Context) error {
	if c.goos != "darwin" {
		c.log.Warnw("imessage channel is only available on macOS", "goos", c.goos)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected.Load() {
		return nil
	}

	chatLog, err := c.openLog(c.cfg.Store.ChatDBPath)
	if err != nil {
		c.log.Errorw("failed to open chat.db; grant Full Disk Access and reconnect",
			"path", c.cfg.Store.ChatDBPath, "error", err)
		return nil
	}

	if err := c.dispatch.LaunchApp(ctx); err != nil {
		c.log.Warnw("failed to launch Messages.app; send may fail until it is running",
			"error", err)
	}

	engine := NewSyncEngine(chatLog, c.state, c.hooks, SyncOptions{
		AssistantName: c.cfg.Assistant.Name,
		HasOwnNumber:  c.cfg.Assistant.HasOwnNumber,
		BatchSize:     c.cfg.Sync.BatchSize,
	}, c.log)
	if err := engine.InitCursor(ctx); err != nil {
		c.log.Errorw("failed to initialize cursor", "error", err)
		chatLog.Close()
		return nil
	}

	c.chatLog = chatLog
	c.engine = engine

	pollCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go c.pollLoop(pollCtx)

	c.connected.Store(true)
	c.log.Infow("connected to imessage channel", "last_rowid", engine.LastRowID())
	return nil
}

// pollLoop drives the sync engine on a fixed period until Disconnect.
// Poll errors are logged and the next tick tries again.
func (c *Channel) pollLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Sync.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.engine.Poll(ctx); err != nil {
				c.log.Errorw("imessage poll failed", "error", err)
			}
		}
	}
}

// SendMessage delivers text to a channel-scoped target. The assistant
// display prefix is applied when no dedicated sending address exists.
func (c *Channel) SendMessage(ctx context.Context, jid, text string) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}

	target, ok := domain.ParseTarget(jid)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, jid)
	}

	outbound := text
	if !c.cfg.Assistant.HasOwnNumber {
		outbound = domain.BotPrefix(c.cfg.Assistant.Name) + text
	}

	if target.Group {
		return c.dispatch.SendToGroup(ctx, target.Value, outbound)
	}
	return c.dispatch.SendToBuddy(ctx, target.Value, outbound)
}

// IsConnected reports whether the channel is ready.
func (c *Channel) IsConnected() bool {
	return c.connected.Load()
}

// OwnsJID reports whether an identifier belongs to this channel.
func (c *Channel) OwnsJID(jid string) bool {
	return domain.OwnsJID(jid)
}

// Cursor returns the current poll position, 0 before Connect.
func (c *Channel) Cursor() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		return 0
	}
	return c.engine.LastRowID()
}

// Disconnect stops polling and closes the store handle. Safe to call when
// already disconnected. In-flight sends are not aborted.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.wg.Wait()

	if c.chatLog != nil {
		if err := c.chatLog.Close(); err != nil {
			c.log.Warnw("failed to close chat.db", "error", err)
		}
		c.chatLog = nil
	}
	c.engine = nil
	c.connected.Store(false)
}
