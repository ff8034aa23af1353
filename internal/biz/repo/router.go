package repo

import "github.com/chatrouter/imessage-channel/internal/biz/domain"

// RouterHooks is the contract the message router implements. The sync
// engine calls it once per processed log row.
type RouterHooks interface {
	// OnInboundMessage delivers a normalized message for a registered chat
	OnInboundMessage(chatJID string, msg domain.Message)

	// OnChatMetadata reports an observed chat, registered or not
	OnChatMetadata(chatJID, timestamp, displayName, channel string, isGroup bool)

	// RegisteredGroups returns a read-only snapshot of registered chats
	RegisteredGroups() map[string]domain.RegisteredGroup
}
