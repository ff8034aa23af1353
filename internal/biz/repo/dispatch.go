package repo

import "context"

// DispatchRepo is the outbound delivery interface backed by the Messages
// scripting bridge. Calls block for the duration of the external
// application's response; retry policy belongs to the caller.
type DispatchRepo interface {
	// SendToBuddy sends text to an individual handle via iMessage
	SendToBuddy(ctx context.Context, handle, text string) error

	// SendToGroup sends text to the open chat whose identifier contains
	// chatKey. The scripting surface has no lookup-by-id, so this is a
	// substring search; it fails when no chat matches.
	SendToGroup(ctx context.Context, chatKey, text string) error

	// LaunchApp asks the Messages application to launch
	LaunchApp(ctx context.Context) error
}
