package applescript

import (
	"fmt"
	"strings"
)

// launchScript asks Messages.app to start without bringing it frontmost.
const launchScript = `tell application "Messages" to launch`

// Escape neutralizes user-supplied text before it is interpolated into an
// AppleScript string literal. Backslash must be replaced first. Unescaped
// input here is a command-injection vector into the scripting environment.
var escaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
)

func Escape(value string) string {
	return escaper.Replace(value)
}

// BuddyScript builds the send command for an individual handle.
func BuddyScript(handle, text string) string {
	return fmt.Sprintf(
		`tell application "Messages" to send "%s" to buddy "%s" of (1st service whose service type = iMessage)`,
		Escape(text), Escape(handle))
}

// GroupScript builds the send command for a group chat. The Messages
// scripting surface has no lookup-by-id, so the script walks the open
// chats and matches by substring; it errors out when nothing matches
// instead of silently dropping the message.
func GroupScript(chatKey, text string) string {
	escapedKey := Escape(chatKey)
	return fmt.Sprintf(`
		tell application "Messages"
			launch
			set targetChat to missing value
			repeat with c in chats
				try
					if (id of c as text) contains "%s" then
						set targetChat to c
						exit repeat
					end if
				end try
			end repeat
			if targetChat is missing value then error "Group chat not found: %s"
			send "%s" to targetChat
		end tell
	`, escapedKey, escapedKey, Escape(text))
}
