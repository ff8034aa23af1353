package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// JIDPrefix is the scheme prefix of every chat identity owned by this
// channel, e.g. "imsg:+15551234567" or "imsg:chat123456789".
const JIDPrefix = "imsg:"

// groupKeyPrefix marks both group-style chat GUIDs in chat.db and the
// synthesized group fallback keys.
const groupKeyPrefix = "chat"

// Individual chats carry a structured GUID like "iMessage;-;+15551234567";
// the trailing field is the peer handle.
var handleFromGUIDRe = regexp.MustCompile(`^iMessage;[-+]?;(.+)$`)

// IsGroupChat reports whether a chat is a group conversation. A
// group-style GUID is authoritative (participant counts can be stale for
// freshly created groups); otherwise more than one participant means group.
func IsGroupChat(chatGUID string, participantCount int) bool {
	if strings.HasPrefix(chatGUID, groupKeyPrefix) {
		return true
	}
	return participantCount > 1
}

// ParseHandleFromChatGUID extracts the peer handle from a structured
// individual-chat GUID. Returns "" when the GUID has no such shape.
func ParseHandleFromChatGUID(chatGUID string) string {
	m := handleFromGUIDRe.FindStringSubmatch(chatGUID)
	if m == nil {
		return ""
	}
	return m[1]
}

// DeriveChatKey derives the stable logical key for a chat. For groups it is
// the chat GUID, falling back to a synthetic "chat<rowid>" key so the
// identity survives restarts. For individuals it is the peer handle, with
// the GUID-embedded handle as fallback. An empty result means the row
// cannot be routed at all.
func DeriveChatKey(isGroup bool, chatGUID string, chatRowID int64, senderHandle string) string {
	if isGroup {
		if chatGUID != "" {
			return chatGUID
		}
		return groupKeyPrefix + strconv.FormatInt(chatRowID, 10)
	}
	if senderHandle != "" {
		return senderHandle
	}
	return ParseHandleFromChatGUID(chatGUID)
}

// ChatJID builds the channel-scoped identity for a chat key.
func ChatJID(key string) string {
	return JIDPrefix + key
}

// OwnsJID reports whether an identifier belongs to this channel.
func OwnsJID(jid string) bool {
	return strings.HasPrefix(jid, JIDPrefix)
}

// Target is a parsed outbound destination.
type Target struct {
	Group bool
	Value string
}

// ParseTarget splits a channel-scoped jid into its raw chat key and
// classifies it. Returns false for foreign schemes and empty keys.
func ParseTarget(jid string) (Target, bool) {
	if !strings.HasPrefix(jid, JIDPrefix) {
		return Target{}, false
	}
	value := strings.TrimPrefix(jid, JIDPrefix)
	if value == "" {
		return Target{}, false
	}
	return Target{Group: strings.HasPrefix(value, groupKeyPrefix), Value: value}, true
}

// BotPrefix is the display prefix applied to outbound text when the
// assistant has no dedicated sending address, so recipients can tell bot
// replies apart in a shared thread.
func BotPrefix(assistantName string) string {
	return assistantName + ": "
}

// IsBotMessage reports whether a log row was sent by the assistant itself.
// With a dedicated sending address "from me" means "from the bot". On a
// shared address a human may also send from-me messages, so only the
// display prefix identifies the bot.
func IsBotMessage(hasOwnNumber bool, isFromMe bool, content, assistantName string) bool {
	if hasOwnNumber {
		return isFromMe
	}
	return strings.HasPrefix(content, BotPrefix(assistantName))
}
