// Package gateway wires channels, sessions, the turn pipeline and reply
// post-processing into the message flow of the bot.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pe200012/llmq-horizon/internal/agent"
	"github.com/pe200012/llmq-horizon/internal/channels"
	"github.com/pe200012/llmq-horizon/internal/commands"
	"github.com/pe200012/llmq-horizon/internal/config"
	"github.com/pe200012/llmq-horizon/internal/observability"
	"github.com/pe200012/llmq-horizon/internal/reply"
	"github.com/pe200012/llmq-horizon/internal/sessions"
	"github.com/pe200012/llmq-horizon/pkg/models"
)

// Gateway routes inbound events through the session manager and the turn
// pipeline, and sends post-processed replies back through the adapter the
// event arrived on.
type Gateway struct {
	plugin    config.PluginConfig
	responses config.ResponsesConfig

	sessions *sessions.Manager
	history  sessions.History
	pipeline *agent.Pipeline
	adapters *channels.Registry
	admin    *commands.Handler

	logger  *slog.Logger
	metrics *observability.Metrics

	mu         sync.Mutex
	processing bool
	isolation  bool
	chunking   bool

	wg sync.WaitGroup
}

// New creates a gateway. The admin command handler is attached afterwards
// via SetAdmin because it needs the gateway as its Controls. metrics may be
// nil.
func New(
	plugin config.PluginConfig,
	responses config.ResponsesConfig,
	mgr *sessions.Manager,
	history sessions.History,
	pipeline *agent.Pipeline,
	adapters *channels.Registry,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Gateway {
	return &Gateway{
		plugin:     plugin,
		responses:  responses,
		sessions:   mgr,
		history:    history,
		pipeline:   pipeline,
		adapters:   adapters,
		logger:     logger,
		metrics:    metrics,
		processing: true,
		isolation:  plugin.GroupChatIsolation,
		chunking:   plugin.Chunk.Enable,
	}
}

// SetAdmin attaches the admin command handler.
func (g *Gateway) SetAdmin(h *commands.Handler) { g.admin = h }

// SetProcessing flips the global processing flag.
func (g *Gateway) SetProcessing(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.processing = enabled
}

// Processing reports whether turns are allowed to start.
func (g *Gateway) Processing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.processing
}

// SetIsolation flips per-user group session isolation.
func (g *Gateway) SetIsolation(isolated bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.isolation = isolated
}

// Isolation reports the current group isolation mode.
func (g *Gateway) Isolation() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isolation
}

// SetChunking flips chunked reply sending.
func (g *Gateway) SetChunking(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chunking = enabled
}

// Chunking reports whether long replies are split into chunks.
func (g *Gateway) Chunking() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chunking
}

// Run consumes events from every adapter until ctx is cancelled. Each
// event is handled on its own goroutine; per-thread serialization comes
// from the session turn slot, not the scheduler.
func (g *Gateway) Run(ctx context.Context) {
	for _, adapter := range g.adapters.All() {
		g.wg.Add(1)
		go func(a channels.Adapter) {
			defer g.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-a.Events():
					if !ok {
						return
					}
					g.wg.Add(1)
					go func() {
						defer g.wg.Done()
						g.Handle(ctx, a, ev)
					}()
				}
			}
		}(adapter)
	}
	g.wg.Wait()
}

// Handle processes one inbound event end to end.
func (g *Gateway) Handle(ctx context.Context, adapter channels.Adapter, ev *models.Event) {
	if g.metrics != nil {
		g.metrics.MessageCounter.WithLabelValues(string(ev.Channel), "inbound").Inc()
	}

	if ev.Superuser && g.admin != nil {
		if args, ok := commands.Match(ev.Text); ok {
			g.send(ctx, adapter, ev, &models.Reply{Text: g.admin.Execute(ev, args)})
			return
		}
	}

	if !g.Processing() {
		if ev.ToMe {
			g.send(ctx, adapter, ev, &models.Reply{Text: g.responses.Disabled})
		}
		return
	}
	if ev.IsGroup() && !g.plugin.EnableGroup {
		return
	}
	if !ev.IsGroup() && !g.plugin.EnablePrivate {
		return
	}
	if g.containsSensitiveWord(ev.Text) {
		g.logger.Info("dropped message with sensitive word", "user_id", ev.UserID)
		return
	}
	if strings.TrimSpace(ev.Text) == "" && len(ev.MediaURLs) == 0 {
		// An at-mention with nothing after trigger stripping gets a nudge.
		if ev.ToMe {
			g.send(ctx, adapter, ev, &models.Reply{Text: g.pickEmptyResponse()})
		}
		return
	}

	threadID := sessions.ThreadID(ev, g.Isolation())
	session := g.sessions.GetOrCreate(threadID)

	turn, err := g.sessions.AcquireTurn(ctx, session)
	if errors.Is(err, sessions.ErrBusy) {
		g.observeTurn("busy", 0)
		g.send(ctx, adapter, ev, &models.Reply{Text: g.responses.SessionBusy})
		return
	}
	if err != nil {
		g.logger.Error("turn acquisition failed", "thread_id", threadID, "error", err)
		return
	}
	defer turn.Release()

	start := time.Now()
	text, outcome := g.runTurn(ctx, threadID, session, turn, ev)
	g.observeTurn(outcome, time.Since(start))
	if text == "" {
		return
	}
	g.send(ctx, adapter, ev, g.buildReply(text))
}

// runTurn executes the pipeline and maps its result to reply text and a
// metrics outcome. An empty text means nothing should be sent.
func (g *Gateway) runTurn(ctx context.Context, threadID string, session *sessions.Session, turn *sessions.Turn, ev *models.Event) (string, string) {
	history, err := g.history.Messages(threadID)
	if err != nil {
		g.logger.Error("history load failed", "thread_id", threadID, "error", err)
	}

	out, err := g.pipeline.Run(ctx, &agent.TurnInput{
		ThreadID:    threadID,
		Skills:      session,
		History:     history,
		UserMessage: g.userMessage(threadID, ev),
	})

	if turn.Stale() {
		g.logger.Warn("discarding superseded turn result", "thread_id", threadID)
		return "", "stale"
	}

	if err != nil {
		g.logger.Error("turn failed", "thread_id", threadID, "error", err)
		g.dropSession(threadID, "error")
		if agent.IsContextTooLarge(err) {
			return g.responses.TokenLimitError, "error"
		}
		return g.responses.GeneralError, "error"
	}

	if out.Final == nil && len(out.Messages) == 0 {
		// Trimming dropped the whole window; nothing ran.
		return "", "short_circuit"
	}

	ext := agent.Extract(out.Final)
	switch ext.Outcome {
	case agent.OutcomeReply:
		if err := g.history.Append(threadID, out.Messages...); err != nil {
			g.logger.Error("history append failed", "thread_id", threadID, "error", err)
		}
		if reply.IsSilent(ext.Text) {
			g.logger.Debug("model chose not to reply", "thread_id", threadID)
			return "", "silent"
		}
		return ext.Text, "ok"

	case agent.OutcomeToolCallFailed:
		// Recoverable: keep the session and its history.
		if err := g.history.Append(threadID, out.Messages...); err != nil {
			g.logger.Error("history append failed", "thread_id", threadID, "error", err)
		}
		if ext.ErrorDetail != "" {
			return fmt.Sprintf(g.responses.ToolCallFailed, ext.ErrorDetail), "error"
		}
		return g.responses.ToolCallFailedBare, "error"

	case agent.OutcomeSafetyBlocked:
		g.dropSession(threadID, "safety")
		return g.responses.SafetyBlocked, "safety"

	case agent.OutcomeEmpty:
		g.dropSession(threadID, "empty")
		return g.pickEmptyResponse(), "empty"

	default:
		if ext.DeleteSession {
			g.dropSession(threadID, "empty")
		}
		return g.responses.NotUnderstood, "empty"
	}
}

// userMessage builds the inbound message, folding in quoted text and media
// attachment URLs.
func (g *Gateway) userMessage(threadID string, ev *models.Event) *models.Message {
	var b strings.Builder
	if ev.ReplyText != "" {
		fmt.Fprintf(&b, "> %s\n", ev.ReplyText)
	}
	b.WriteString(ev.Text)
	for _, url := range ev.MediaURLs {
		fmt.Fprintf(&b, "\n[attachment] %s", url)
	}

	return &models.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Role:      models.RoleUser,
		Content:   b.String(),
		CreatedAt: time.Now(),
	}
}

// dropSession removes the session and its transcript so the next message
// starts a fresh conversation.
func (g *Gateway) dropSession(threadID, reason string) {
	g.sessions.Remove(threadID, reason)
	if err := g.history.Clear(threadID); err != nil {
		g.logger.Error("history clear failed", "thread_id", threadID, "error", err)
	}
}

// buildReply post-processes final text: media extraction first, then
// optional chunking for plain text.
func (g *Gateway) buildReply(text string) *models.Reply {
	if media := reply.Extract(text); media != nil {
		r := &models.Reply{MediaKind: string(media.Kind), MediaURL: media.URL}
		if g.plugin.MediaIncludeText {
			r.Text = media.Text
		}
		return r
	}
	if g.Chunking() {
		if chunks := reply.Chunk(text, g.plugin.Chunk.Size); len(chunks) > 1 {
			return &models.Reply{Chunks: chunks}
		}
	}
	return &models.Reply{Text: text}
}

func (g *Gateway) send(ctx context.Context, adapter channels.Adapter, ev *models.Event, r *models.Reply) {
	if err := adapter.Send(ctx, ev, r); err != nil {
		g.logger.Error("send failed", "channel", ev.Channel, "error", err)
		return
	}
	if g.metrics != nil {
		g.metrics.MessageCounter.WithLabelValues(string(ev.Channel), "outbound").Inc()
	}
}

func (g *Gateway) containsSensitiveWord(text string) bool {
	for _, word := range g.plugin.SensitiveWords {
		if word != "" && strings.Contains(text, word) {
			return true
		}
	}
	return false
}

func (g *Gateway) pickEmptyResponse() string {
	if len(g.responses.EmptyMessage) == 0 {
		return g.responses.NotUnderstood
	}
	return g.responses.EmptyMessage[rand.Intn(len(g.responses.EmptyMessage))]
}

func (g *Gateway) observeTurn(outcome string, elapsed time.Duration) {
	if g.metrics != nil {
		g.metrics.ObserveTurn(outcome, elapsed)
	}
}
