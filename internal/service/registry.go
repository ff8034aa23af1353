package service

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chatrouter/imessage-channel/internal/biz/domain"
)

// Registry is the in-process router collaborator: it tracks which chats
// are registered for message delivery and remembers the latest metadata
// for every chat the sync engine has observed. Implements
// repo.RouterHooks.
type Registry struct {
	log *zap.SugaredLogger

	mu     sync.RWMutex
	groups map[string]domain.RegisteredGroup
	chats  map[string]domain.ChatMetadata

	// inbound, when set, receives every forwarded message
	inbound func(chatJID string, msg domain.Message)
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.SugaredLogger) *Registry {
	return &Registry{
		log:    log,
		groups: make(map[string]domain.RegisteredGroup),
		chats:  make(map[string]domain.ChatMetadata),
	}
}

// SetInboundHandler installs a downstream consumer for forwarded messages.
func (r *Registry) SetInboundHandler(fn func(chatJID string, msg domain.Message)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inbound = fn
}

// Register opts a chat into message delivery.
func (r *Registry) Register(jid, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[jid] = domain.RegisteredGroup{
		JID:     jid,
		Name:    name,
		AddedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// Unregister removes a chat from message delivery.
func (r *Registry) Unregister(jid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.groups, jid)
}

// OnInboundMessage receives a forwarded message from the sync engine.
func (r *Registry) OnInboundMessage(chatJID string, msg domain.Message) {
	r.mu.RLock()
	inbound := r.inbound
	r.mu.RUnlock()

	r.log.Infow("inbound message",
		"chat_jid", chatJID, "sender", msg.Sender, "from_me", msg.IsFromMe,
		"bot", msg.IsBotMessage)
	if inbound != nil {
		inbound(chatJID, msg)
	}
}

// OnChatMetadata records the latest metadata for an observed chat.
func (r *Registry) OnChatMetadata(chatJID, timestamp, displayName, channel string, isGroup bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats[chatJID] = domain.ChatMetadata{
		ChatJID:     chatJID,
		Timestamp:   timestamp,
		DisplayName: displayName,
		Channel:     channel,
		IsGroup:     isGroup,
	}
}

// RegisteredGroups returns a snapshot of the registered chats.
func (r *Registry) RegisteredGroups() map[string]domain.RegisteredGroup {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make(map[string]domain.RegisteredGroup, len(r.groups))
	for jid, group := range r.groups {
		snapshot[jid] = group
	}
	return snapshot
}

// Chats returns a snapshot of the observed chats in no particular order.
func (r *Registry) Chats() []domain.ChatMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chats := make([]domain.ChatMetadata, 0, len(r.chats))
	for _, meta := range r.chats {
		chats = append(chats, meta)
	}
	return chats
}
