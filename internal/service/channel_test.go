package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/chatrouter/imessage-channel/internal/biz/repo"
	"github.com/chatrouter/imessage-channel/internal/conf"
)

type mockDispatch struct {
	buddySends []sendCall
	groupSends []sendCall
	launches   int
	sendErr    error
	launchErr  error
	mu         sync.Mutex
}

type sendCall struct {
	target string
	text   string
}

func (m *mockDispatch) SendToBuddy(ctx context.Context, handle, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buddySends = append(m.buddySends, sendCall{handle, text})
	return m.sendErr
}

func (m *mockDispatch) SendToGroup(ctx context.Context, chatKey, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groupSends = append(m.groupSends, sendCall{chatKey, text})
	return m.sendErr
}

func (m *mockDispatch) LaunchApp(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.launches++
	return m.launchErr
}

func testConfig() *conf.Config {
	return &conf.Config{
		Assistant: conf.AssistantConfig{Name: "Andy", HasOwnNumber: false},
		Store:     conf.StoreConfig{ChatDBPath: "/nonexistent/chat.db"},
		Sync:      conf.SyncConfig{PollInterval: 10 * time.Millisecond, BatchSize: 500},
	}
}

func newTestChannel(cfg *conf.Config, chatLog *mockChatLog, dispatch *mockDispatch, hooks *mockHooks) *Channel {
	openLog := func(path string) (repo.ChatLogRepo, error) {
		if chatLog == nil {
			return nil, errors.New("open failed")
		}
		return chatLog, nil
	}
	ch := NewChannel(cfg, newMockState(), dispatch, hooks, openLog, zap.NewNop().Sugar())
	ch.goos = "darwin"
	return ch
}

func TestConnectUnsupportedPlatform(t *testing.T) {
	ch := newTestChannel(testConfig(), &mockChatLog{}, &mockDispatch{}, newMockHooks())
	ch.goos = "linux"

	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect on unsupported platform must not error: %v", err)
	}
	if ch.IsConnected() {
		t.Error("channel must stay disconnected off macOS")
	}
}

func TestConnectOpenFailure(t *testing.T) {
	ch := newTestChannel(testConfig(), nil, &mockDispatch{}, newMockHooks())

	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect must not error on open failure: %v", err)
	}
	if ch.IsConnected() {
		t.Error("channel must stay disconnected when chat.db cannot be opened")
	}
}

func TestConnectAndDisconnect(t *testing.T) {
	dispatch := &mockDispatch{}
	ch := newTestChannel(testConfig(), &mockChatLog{}, dispatch, newMockHooks())

	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !ch.IsConnected() {
		t.Fatal("channel should be connected")
	}
	if dispatch.launches != 1 {
		t.Errorf("expected one launch attempt, got %d", dispatch.launches)
	}

	ch.Disconnect()
	if ch.IsConnected() {
		t.Error("channel should be disconnected")
	}

	// Idempotent.
	ch.Disconnect()
	if ch.IsConnected() {
		t.Error("repeated Disconnect must be safe")
	}
}

func TestConnectSurvivesLaunchFailure(t *testing.T) {
	dispatch := &mockDispatch{launchErr: errors.New("no Messages.app")}
	ch := newTestChannel(testConfig(), &mockChatLog{}, dispatch, newMockHooks())
	defer ch.Disconnect()

	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !ch.IsConnected() {
		t.Error("launch failure must not block connect")
	}
}

func TestPollLoopDeliversMessages(t *testing.T) {
	chatLog := &mockChatLog{participants: map[int64]int{1: 3}}
	hooks := newMockHooks("imsg:chat123456")
	ch := newTestChannel(testConfig(), chatLog, &mockDispatch{}, hooks)

	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer ch.Disconnect()

	chatLog.mu.Lock()
	chatLog.rows = append(chatLog.rows, groupRow(1, "hello"))
	chatLog.mu.Unlock()

	deadline := time.After(2 * time.Second)
	for {
		hooks.mu.Lock()
		delivered := len(hooks.messages)
		hooks.mu.Unlock()
		if delivered == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("poll loop never delivered the new row")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if ch.Cursor() != 1 {
		t.Errorf("cursor = %d, want 1", ch.Cursor())
	}
}

func TestSendMessageNotConnected(t *testing.T) {
	ch := newTestChannel(testConfig(), &mockChatLog{}, &mockDispatch{}, newMockHooks())

	err := ch.SendMessage(context.Background(), "imsg:+15551234567", "hi")
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestSendMessageInvalidTarget(t *testing.T) {
	dispatch := &mockDispatch{}
	ch := newTestChannel(testConfig(), &mockChatLog{}, dispatch, newMockHooks())
	ch.connected.Store(true)

	for _, jid := range []string{"sms:123", "imsg:", "", "chat123"} {
		err := ch.SendMessage(context.Background(), jid, "hi")
		if !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("SendMessage(%q) = %v, want ErrInvalidTarget", jid, err)
		}
	}
	if len(dispatch.buddySends)+len(dispatch.groupSends) != 0 {
		t.Error("no bridge command may be issued for invalid targets")
	}
}

func TestSendMessageBuddyWithPrefix(t *testing.T) {
	dispatch := &mockDispatch{}
	ch := newTestChannel(testConfig(), &mockChatLog{}, dispatch, newMockHooks())
	ch.connected.Store(true)

	if err := ch.SendMessage(context.Background(), "imsg:+15551234567", "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if len(dispatch.buddySends) != 1 {
		t.Fatalf("expected 1 buddy send, got %d", len(dispatch.buddySends))
	}
	sent := dispatch.buddySends[0]
	if sent.target != "+15551234567" {
		t.Errorf("target = %q", sent.target)
	}
	if sent.text != "Andy: hello" {
		t.Errorf("shared-address send must carry the display prefix, got %q", sent.text)
	}
}

func TestSendMessageOwnNumberNoPrefix(t *testing.T) {
	cfg := testConfig()
	cfg.Assistant.HasOwnNumber = true
	dispatch := &mockDispatch{}
	ch := newTestChannel(cfg, &mockChatLog{}, dispatch, newMockHooks())
	ch.connected.Store(true)

	if err := ch.SendMessage(context.Background(), "imsg:+15551234567", "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if dispatch.buddySends[0].text != "hello" {
		t.Errorf("dedicated-address send must not be prefixed, got %q", dispatch.buddySends[0].text)
	}
}

func TestSendMessageGroupRouting(t *testing.T) {
	dispatch := &mockDispatch{}
	ch := newTestChannel(testConfig(), &mockChatLog{}, dispatch, newMockHooks())
	ch.connected.Store(true)

	if err := ch.SendMessage(context.Background(), "imsg:chat123456", "hi all"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if len(dispatch.groupSends) != 1 || len(dispatch.buddySends) != 0 {
		t.Fatalf("group target must use group dispatch: %+v", dispatch)
	}
	if dispatch.groupSends[0].target != "chat123456" {
		t.Errorf("group key = %q", dispatch.groupSends[0].target)
	}
}

func TestSendMessageDeliveryFailureSurfaces(t *testing.T) {
	cause := errors.New("group chat not found")
	dispatch := &mockDispatch{sendErr: cause}
	ch := newTestChannel(testConfig(), &mockChatLog{}, dispatch, newMockHooks())
	ch.connected.Store(true)

	err := ch.SendMessage(context.Background(), "imsg:chat42", "hi")
	if !errors.Is(err, cause) {
		t.Errorf("delivery failure must surface to the caller, got %v", err)
	}
}

func TestOwnsJID(t *testing.T) {
	ch := newTestChannel(testConfig(), &mockChatLog{}, &mockDispatch{}, newMockHooks())

	if !ch.OwnsJID("imsg:+15551234567") {
		t.Error("imsg jid should be owned")
	}
	if ch.OwnsJID("wa:+15551234567") {
		t.Error("foreign jid should not be owned")
	}
	if ch.Name() != "imessage" {
		t.Errorf("channel name = %q", ch.Name())
	}
}
