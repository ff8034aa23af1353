package applescript

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/chatrouter/imessage-channel/internal/biz/repo"
)

// Runner delivers outbound messages by handing AppleScript to osascript.
// Each call spawns one osascript process and blocks until Messages.app
// responds; there is no cancellation beyond the passed context.
type Runner struct {
	log *zap.SugaredLogger

	// execute is swappable for tests
	execute func(ctx context.Context, script string) error
}

// NewRunner creates an osascript-backed dispatch runner.
func NewRunner(log *zap.SugaredLogger) *Runner {
	r := &Runner{log: log}
	r.execute = r.runOsascript
	return r
}

var _ repo.DispatchRepo = (*Runner)(nil)

// SendToBuddy sends text to an individual handle via iMessage.
func (r *Runner) SendToBuddy(ctx context.Context, handle, text string) error {
	r.log.Debugw("sending to buddy", "handle", handle)
	if err := r.execute(ctx, BuddyScript(handle, text)); err != nil {
		return fmt.Errorf("failed to send to buddy %s: %w", handle, err)
	}
	return nil
}

// SendToGroup sends text to the open chat whose id contains chatKey.
func (r *Runner) SendToGroup(ctx context.Context, chatKey, text string) error {
	r.log.Debugw("sending to group", "chat_key", chatKey)
	if err := r.execute(ctx, GroupScript(chatKey, text)); err != nil {
		return fmt.Errorf("failed to send to group %s: %w", chatKey, err)
	}
	return nil
}

// LaunchApp asks Messages.app to launch.
func (r *Runner) LaunchApp(ctx context.Context) error {
	if err := r.execute(ctx, launchScript); err != nil {
		return fmt.Errorf("failed to launch Messages.app: %w", err)
	}
	return nil
}

func (r *Runner) runOsascript(ctx context.Context, script string) error {
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return fmt.Errorf("osascript: %w: %s", err, detail)
		}
		return fmt.Errorf("osascript: %w", err)
	}
	return nil
}
