package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pe200012/llmq-horizon/internal/agent"
	"github.com/pe200012/llmq-horizon/internal/channels"
	"github.com/pe200012/llmq-horizon/internal/commands"
	"github.com/pe200012/llmq-horizon/internal/config"
	"github.com/pe200012/llmq-horizon/internal/sessions"
	"github.com/pe200012/llmq-horizon/internal/skills"
	"github.com/pe200012/llmq-horizon/internal/tools"
	"github.com/pe200012/llmq-horizon/pkg/models"
)

// fakeAdapter records every reply the gateway sends through it.
type fakeAdapter struct {
	events chan *models.Event

	mu      sync.Mutex
	replies []*models.Reply
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{events: make(chan *models.Event, 8)}
}

func (a *fakeAdapter) Start(ctx context.Context) error { return nil }
func (a *fakeAdapter) Stop(ctx context.Context) error  { return nil }
func (a *fakeAdapter) Events() <-chan *models.Event    { return a.events }
func (a *fakeAdapter) Type() models.ChannelType        { return models.ChannelOneBot }

func (a *fakeAdapter) Send(ctx context.Context, ev *models.Event, r *models.Reply) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.replies = append(a.replies, r)
	return nil
}

func (a *fakeAdapter) sent() []*models.Reply {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*models.Reply(nil), a.replies...)
}

// scriptedProvider returns canned responses in order. onInvoke, when set,
// runs before each response is handed back.
type scriptedProvider struct {
	responses []*models.Message
	err       error
	onInvoke  func()
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }

func (p *scriptedProvider) Invoke(ctx context.Context, req *agent.CompletionRequest) (*agent.CompletionResponse, error) {
	if p.onInvoke != nil {
		p.onInvoke()
	}
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return nil, errors.New("scripted provider exhausted")
	}
	next := p.responses[0]
	p.responses = p.responses[1:]
	return &agent.CompletionResponse{Message: next}, nil
}

func assistantReply(text string) *models.Message {
	return &models.Message{Role: models.RoleAssistant, Content: text, FinishReason: models.FinishStop, CreatedAt: time.Now()}
}

var testResponses = config.ResponsesConfig{
	SessionBusy:        "Still thinking about your last message.",
	Disabled:           "Chat is currently disabled.",
	EmptyMessage:       []string{"I have nothing to say."},
	SafetyBlocked:      "I can't help with that.",
	NotUnderstood:      "I didn't understand that.",
	ToolCallFailed:     "Tool call failed: %s",
	ToolCallFailedBare: "Tool call failed.",
	TokenLimitError:    "The conversation got too long, starting over.",
	GeneralError:       "Something went wrong.",
}

type testEnv struct {
	gw      *Gateway
	adapter *fakeAdapter
	mgr     *sessions.Manager
	history *sessions.MemoryHistory
}

func newTestEnv(t *testing.T, provider agent.Provider, mutate func(*config.PluginConfig, *config.SessionConfig)) *testEnv {
	t.Helper()

	plugin := config.PluginConfig{
		EnableGroup:   true,
		EnablePrivate: true,
		Chunk:         config.ChunkConfig{Enable: false, Size: 100},
	}
	sess := config.SessionConfig{
		CleanupInterval:    600 * time.Second,
		ProcessingTimeout:  60 * time.Second,
		LockTimeout:        20 * time.Millisecond,
		MaxHistoryMessages: 20,
	}
	if mutate != nil {
		mutate(&plugin, &sess)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr := sessions.NewManager(sess, nil, logger, nil)
	history := sessions.NewMemoryHistory(sess.MaxHistoryMessages)

	skillReg := skills.NewRegistry(nil)
	resolver := tools.NewResolver(skillReg, tools.NewRegistry(), nil)
	pipeline := agent.NewPipeline(provider, skillReg, resolver, config.LLMConfig{SystemPrompt: "You are a helpful bot."}, sess.MaxHistoryMessages, logger, nil)

	adapter := newFakeAdapter()
	registry := channels.NewRegistry()
	registry.Register(adapter)

	gw := New(plugin, testResponses, mgr, history, pipeline, registry, logger, nil)
	gw.SetAdmin(commands.NewHandler(mgr, skillReg, gw, logger))
	return &testEnv{gw: gw, adapter: adapter, mgr: mgr, history: history}
}

func privateEvent(userID, text string) *models.Event {
	return &models.Event{Channel: models.ChannelOneBot, UserID: userID, Text: text, ToMe: true}
}

func TestHandleSimpleReply(t *testing.T) {
	provider := &scriptedProvider{responses: []*models.Message{assistantReply("hi there")}}
	env := newTestEnv(t, provider, nil)

	env.gw.Handle(context.Background(), env.adapter, privateEvent("42", "hello"))

	replies := env.adapter.sent()
	if len(replies) != 1 || replies[0].Text != "hi there" {
		t.Fatalf("replies = %+v", replies)
	}
	msgs, err := env.history.Messages("private_42")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Errorf("history = %d messages, want user + assistant", len(msgs))
	}
}

func TestHandleSessionBusy(t *testing.T) {
	provider := &scriptedProvider{responses: []*models.Message{assistantReply("late")}}
	env := newTestEnv(t, provider, nil)

	session := env.mgr.GetOrCreate("private_42")
	turn, err := env.mgr.AcquireTurn(context.Background(), session)
	if err != nil {
		t.Fatal(err)
	}
	defer turn.Release()

	env.gw.Handle(context.Background(), env.adapter, privateEvent("42", "hello"))

	replies := env.adapter.sent()
	if len(replies) != 1 || replies[0].Text != testResponses.SessionBusy {
		t.Fatalf("replies = %+v, want busy response", replies)
	}
}

func TestHandleSafetyBlockedDeletesSession(t *testing.T) {
	provider := &scriptedProvider{responses: []*models.Message{
		{Role: models.RoleAssistant, Content: "", FinishReason: models.FinishSafety, CreatedAt: time.Now()},
	}}
	env := newTestEnv(t, provider, nil)

	env.history.Append("private_42", assistantReply("older context"))
	env.gw.Handle(context.Background(), env.adapter, privateEvent("42", "do something bad"))

	replies := env.adapter.sent()
	if len(replies) != 1 || replies[0].Text != testResponses.SafetyBlocked {
		t.Fatalf("replies = %+v, want safety response", replies)
	}
	if env.mgr.Len() != 0 {
		t.Error("session should be removed after a safety block")
	}
	msgs, _ := env.history.Messages("private_42")
	if len(msgs) != 0 {
		t.Errorf("history should be cleared, got %d messages", len(msgs))
	}
}

func TestHandleStaleTurnDiscarded(t *testing.T) {
	env := newTestEnv(t, nil, func(_ *config.PluginConfig, sess *config.SessionConfig) {
		sess.ProcessingTimeout = time.Nanosecond
	})

	// While the first turn is mid-invoke, a second acquirer reclaims the
	// session slot; the first turn's result must then be thrown away.
	var reclaimed *sessions.Turn
	provider := &scriptedProvider{
		responses: []*models.Message{assistantReply("too late")},
		onInvoke: func() {
			time.Sleep(time.Millisecond)
			session := env.mgr.GetOrCreate("private_42")
			turn, err := env.mgr.AcquireTurn(context.Background(), session)
			if err != nil {
				t.Errorf("reclaim acquire failed: %v", err)
				return
			}
			reclaimed = turn
		},
	}
	// The pipeline was built with a nil provider placeholder; rebuild the
	// environment around the real one.
	env = newTestEnvWith(t, env, provider)

	env.gw.Handle(context.Background(), env.adapter, privateEvent("42", "hello"))
	if reclaimed != nil {
		reclaimed.Release()
	}

	if replies := env.adapter.sent(); len(replies) != 0 {
		t.Fatalf("stale turn should not send, got %+v", replies)
	}
	msgs, _ := env.history.Messages("private_42")
	if len(msgs) != 0 {
		t.Errorf("stale turn should not commit history, got %d messages", len(msgs))
	}
}

// newTestEnvWith rebuilds env's gateway around a provider while keeping the
// manager and history, so test callbacks can close over them.
func newTestEnvWith(t *testing.T, env *testEnv, provider agent.Provider) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	skillReg := skills.NewRegistry(nil)
	resolver := tools.NewResolver(skillReg, tools.NewRegistry(), nil)
	pipeline := agent.NewPipeline(provider, skillReg, resolver, config.LLMConfig{}, 20, logger, nil)

	adapter := newFakeAdapter()
	registry := channels.NewRegistry()
	registry.Register(adapter)

	plugin := config.PluginConfig{EnableGroup: true, EnablePrivate: true, Chunk: config.ChunkConfig{Size: 100}}
	gw := New(plugin, testResponses, env.mgr, env.history, pipeline, registry, logger, nil)
	return &testEnv{gw: gw, adapter: adapter, mgr: env.mgr, history: env.history}
}

func TestHandleAdminCommand(t *testing.T) {
	env := newTestEnv(t, &scriptedProvider{}, nil)

	ev := privateEvent("1", "chat down")
	ev.Superuser = true
	env.gw.Handle(context.Background(), env.adapter, ev)

	replies := env.adapter.sent()
	if len(replies) != 1 || replies[0].Text != "Chat processing disabled." {
		t.Fatalf("replies = %+v", replies)
	}
	if env.gw.Processing() {
		t.Error("processing should be disabled")
	}
}

func TestHandleAdminCommandRequiresSuperuser(t *testing.T) {
	provider := &scriptedProvider{responses: []*models.Message{assistantReply("just chatting")}}
	env := newTestEnv(t, provider, nil)

	// Non-superusers get the normal pipeline, not the command handler.
	env.gw.Handle(context.Background(), env.adapter, privateEvent("42", "chat down"))

	replies := env.adapter.sent()
	if len(replies) != 1 || replies[0].Text != "just chatting" {
		t.Fatalf("replies = %+v", replies)
	}
	if !env.gw.Processing() {
		t.Error("processing should be untouched")
	}
}

func TestHandleProcessingDisabled(t *testing.T) {
	env := newTestEnv(t, &scriptedProvider{}, nil)
	env.gw.SetProcessing(false)

	env.gw.Handle(context.Background(), env.adapter, privateEvent("42", "hello"))
	replies := env.adapter.sent()
	if len(replies) != 1 || replies[0].Text != testResponses.Disabled {
		t.Fatalf("replies = %+v, want disabled notice", replies)
	}

	notToMe := privateEvent("42", "hello")
	notToMe.ToMe = false
	env.gw.Handle(context.Background(), env.adapter, notToMe)
	if len(env.adapter.sent()) != 1 {
		t.Error("silent drop expected when the bot was not addressed")
	}
}

func TestHandleEmptyMentionGetsNudge(t *testing.T) {
	env := newTestEnv(t, &scriptedProvider{}, nil)

	env.gw.Handle(context.Background(), env.adapter, privateEvent("42", "   "))

	replies := env.adapter.sent()
	if len(replies) != 1 || replies[0].Text != testResponses.EmptyMessage[0] {
		t.Fatalf("replies = %+v, want empty-message nudge", replies)
	}
	if env.mgr.Len() != 0 {
		t.Error("no session should be created for an empty message")
	}
}

func TestHandleSensitiveWordDrop(t *testing.T) {
	env := newTestEnv(t, &scriptedProvider{}, func(plugin *config.PluginConfig, _ *config.SessionConfig) {
		plugin.SensitiveWords = []string{"forbidden"}
	})

	env.gw.Handle(context.Background(), env.adapter, privateEvent("42", "this is forbidden text"))

	if len(env.adapter.sent()) != 0 {
		t.Fatal("sensitive message should be dropped silently")
	}
	if env.mgr.Len() != 0 {
		t.Error("no session should be created for a dropped message")
	}
}

func TestHandleGroupDisabled(t *testing.T) {
	env := newTestEnv(t, &scriptedProvider{}, func(plugin *config.PluginConfig, _ *config.SessionConfig) {
		plugin.EnableGroup = false
	})

	ev := privateEvent("42", "hello")
	ev.GroupID = "7"
	env.gw.Handle(context.Background(), env.adapter, ev)

	if len(env.adapter.sent()) != 0 {
		t.Fatal("group message should be dropped when groups are disabled")
	}
}

func TestHandleChunkedReply(t *testing.T) {
	long := strings.Repeat("sentence one. ", 10) + "\n\n" + strings.Repeat("sentence two. ", 10)
	provider := &scriptedProvider{responses: []*models.Message{assistantReply(long)}}
	env := newTestEnv(t, provider, func(plugin *config.PluginConfig, _ *config.SessionConfig) {
		plugin.Chunk = config.ChunkConfig{Enable: true, Size: 80}
	})

	env.gw.Handle(context.Background(), env.adapter, privateEvent("42", "tell me more"))

	replies := env.adapter.sent()
	if len(replies) != 1 {
		t.Fatalf("replies = %d", len(replies))
	}
	if len(replies[0].Chunks) < 2 {
		t.Fatalf("Chunks = %v, want multiple parts", replies[0].Chunks)
	}
	for _, c := range replies[0].Chunks {
		if len([]rune(c)) > 80 {
			t.Errorf("chunk exceeds size: %q", c)
		}
	}
}

func TestHandleMediaReply(t *testing.T) {
	provider := &scriptedProvider{responses: []*models.Message{
		assistantReply("here you go https://cdn.example.com/cat.png"),
	}}
	env := newTestEnv(t, provider, nil)

	env.gw.Handle(context.Background(), env.adapter, privateEvent("42", "show me a cat"))

	replies := env.adapter.sent()
	if len(replies) != 1 {
		t.Fatalf("replies = %d", len(replies))
	}
	r := replies[0]
	if r.MediaKind != "image" || r.MediaURL != "https://cdn.example.com/cat.png" {
		t.Fatalf("reply = %+v", r)
	}
	if r.Text != "" {
		t.Errorf("Text = %q, want media-only reply", r.Text)
	}
}

func TestHandleMediaReplyKeepsText(t *testing.T) {
	provider := &scriptedProvider{responses: []*models.Message{
		assistantReply("here you go https://cdn.example.com/cat.png"),
	}}
	env := newTestEnv(t, provider, func(plugin *config.PluginConfig, _ *config.SessionConfig) {
		plugin.MediaIncludeText = true
	})

	env.gw.Handle(context.Background(), env.adapter, privateEvent("42", "show me a cat"))

	replies := env.adapter.sent()
	if len(replies) != 1 || replies[0].Text != "here you go" {
		t.Fatalf("replies = %+v", replies)
	}
}

func TestHandleContextTooLarge(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("maximum context length exceeded")}
	env := newTestEnv(t, provider, nil)

	env.history.Append("private_42", assistantReply("old"))
	env.gw.Handle(context.Background(), env.adapter, privateEvent("42", "hello"))

	replies := env.adapter.sent()
	if len(replies) != 1 || replies[0].Text != testResponses.TokenLimitError {
		t.Fatalf("replies = %+v", replies)
	}
	if env.mgr.Len() != 0 {
		t.Error("session should be removed after a context-size failure")
	}
	msgs, _ := env.history.Messages("private_42")
	if len(msgs) != 0 {
		t.Error("history should be cleared after a context-size failure")
	}
}

func TestHandleSilentReply(t *testing.T) {
	provider := &scriptedProvider{responses: []*models.Message{assistantReply("NO_REPLY")}}
	env := newTestEnv(t, provider, nil)

	env.gw.Handle(context.Background(), env.adapter, privateEvent("42", "just venting"))

	if replies := env.adapter.sent(); len(replies) != 0 {
		t.Fatalf("silent reply should not be sent, got %+v", replies)
	}
	msgs, _ := env.history.Messages("private_42")
	if len(msgs) != 2 {
		t.Errorf("silent turn should still commit history, got %d messages", len(msgs))
	}
}

func TestHandleProviderError(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("upstream 500")}
	env := newTestEnv(t, provider, nil)

	env.gw.Handle(context.Background(), env.adapter, privateEvent("42", "hello"))

	replies := env.adapter.sent()
	if len(replies) != 1 || replies[0].Text != testResponses.GeneralError {
		t.Fatalf("replies = %+v", replies)
	}
}

func TestHandleQuotedAndMediaInput(t *testing.T) {
	provider := &scriptedProvider{responses: []*models.Message{assistantReply("noted")}}
	env := newTestEnv(t, provider, nil)

	ev := privateEvent("42", "what about this")
	ev.ReplyText = "earlier message"
	ev.MediaURLs = []string{"https://cdn.example.com/doc.png"}
	env.gw.Handle(context.Background(), env.adapter, ev)

	msgs, err := env.history.Messages("private_42")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("history = %d messages", len(msgs))
	}
	user := msgs[0].Content
	if !strings.Contains(user, "> earlier message") {
		t.Errorf("quoted text missing from %q", user)
	}
	if !strings.Contains(user, "https://cdn.example.com/doc.png") {
		t.Errorf("attachment missing from %q", user)
	}
}

func TestRunFansInAdapterEvents(t *testing.T) {
	provider := &scriptedProvider{responses: []*models.Message{assistantReply("pong")}}
	env := newTestEnv(t, provider, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		env.gw.Run(ctx)
		close(done)
	}()

	env.adapter.events <- privateEvent("42", "ping")

	deadline := time.After(2 * time.Second)
	for len(env.adapter.sent()) == 0 {
		select {
		case <-deadline:
			t.Fatal("no reply before deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if replies := env.adapter.sent(); replies[0].Text != "pong" {
		t.Fatalf("replies = %+v", replies)
	}
}
