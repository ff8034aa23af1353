package domain

// ChannelName is the tag this channel reports in chat metadata.
const ChannelName = "imessage"

// Message is a normalized inbound message handed to the router.
type Message struct {
	ID           string `json:"id"`
	ChatJID      string `json:"chat_jid"`
	Sender       string `json:"sender"`
	SenderName   string `json:"sender_name"`
	Content      string `json:"content"`
	Timestamp    string `json:"timestamp"`
	IsFromMe     bool   `json:"is_from_me"`
	IsBotMessage bool   `json:"is_bot_message"`
}

// ChatMetadata describes an observed chat. It is emitted for every
// processed row whether or not the chat is registered.
type ChatMetadata struct {
	ChatJID     string `json:"chat_jid"`
	Timestamp   string `json:"timestamp"`
	DisplayName string `json:"display_name,omitempty"`
	Channel     string `json:"channel"`
	IsGroup     bool   `json:"is_group"`
}

// RegisteredGroup represents a chat the router has opted into. Inbound
// messages are only forwarded for registered chats.
type RegisteredGroup struct {
	JID     string `json:"jid"`
	Name    string `json:"name"`
	AddedAt string `json:"added_at"`
}

// LogRow is one entry of the Messages chat.db log, joined across the
// message, chat and handle tables. Nullable columns are zero-valued.
type LogRow struct {
	MessageRowID    int64
	MessageGUID     string
	Text            string
	IsFromMe        bool
	AppleDateRaw    int64
	SenderHandle    string
	ChatRowID       int64
	ChatGUID        string
	ChatDisplayName string
}
