package onebot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/pe200012/llmq-horizon/internal/backoff"
	"github.com/pe200012/llmq-horizon/internal/channels"
	"github.com/pe200012/llmq-horizon/internal/config"
	"github.com/pe200012/llmq-horizon/pkg/models"
)

const eventBuffer = 100

// Adapter is a OneBot v11 client. It dials the implementation's WebSocket
// endpoint, normalizes message events, and sends replies as send_msg
// actions.
type Adapter struct {
	cfg        config.OneBotConfig
	trigger    channels.Trigger
	superusers map[string]struct{}
	logger     *slog.Logger

	events chan *models.Event
	selfID atomic.Value // string
	echo   atomic.Uint64

	connMu sync.Mutex
	conn   *websocket.Conn

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAdapter creates a OneBot adapter.
func NewAdapter(cfg config.OneBotConfig, trigger channels.Trigger, logger *slog.Logger) *Adapter {
	superusers := make(map[string]struct{}, len(cfg.Superusers))
	for _, id := range cfg.Superusers {
		superusers[id] = struct{}{}
	}
	a := &Adapter{
		cfg:        cfg,
		trigger:    trigger,
		superusers: superusers,
		logger:     logger.With("adapter", "onebot"),
		events:     make(chan *models.Event, eventBuffer),
	}
	a.selfID.Store("")
	return a
}

func (a *Adapter) Type() models.ChannelType     { return models.ChannelOneBot }
func (a *Adapter) Events() <-chan *models.Event { return a.events }

// Start dials the endpoint and begins the read loop, reconnecting on
// connection loss until the context is cancelled.
func (a *Adapter) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.dial(ctx); err != nil {
		cancel()
		return err
	}

	a.wg.Add(1)
	go a.runWithReconnect(ctx)

	a.logger.Info("onebot adapter started", "url", a.cfg.URL)
	return nil
}

func (a *Adapter) dial(ctx context.Context) error {
	opts := &websocket.DialOptions{}
	if a.cfg.AccessToken != "" {
		opts.HTTPHeader = http.Header{
			"Authorization": []string{"Bearer " + a.cfg.AccessToken},
		}
	}

	conn, _, err := websocket.Dial(ctx, a.cfg.URL, opts)
	if err != nil {
		return fmt.Errorf("onebot dial %s: %w", a.cfg.URL, err)
	}
	conn.SetReadLimit(1 << 22)

	a.connMu.Lock()
	a.conn = conn
	a.connMu.Unlock()
	return nil
}

func (a *Adapter) runWithReconnect(ctx context.Context) {
	defer a.wg.Done()
	defer close(a.events)

	policy := backoff.Default()
	attempt := 0
	for {
		err := a.readLoop(ctx)
		if ctx.Err() != nil {
			a.logger.Info("onebot adapter stopped")
			return
		}
		a.logger.Warn("onebot connection lost", "error", err)

		attempt++
		delay := policy.Next(attempt)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if err := a.dial(ctx); err != nil {
			a.logger.Error("onebot reconnect failed", "attempt", attempt, "error", err)
			continue
		}
		attempt = 0
	}
}

func (a *Adapter) readLoop(ctx context.Context) error {
	for {
		conn := a.current()
		if conn == nil {
			return errors.New("no connection")
		}
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		a.handleFrame(ctx, data)
	}
}

// wireEvent is the subset of OneBot v11 event fields the bot consumes.
type wireEvent struct {
	PostType    string `json:"post_type"`
	MessageType string `json:"message_type"`
	SelfID      int64  `json:"self_id"`
	UserID      int64  `json:"user_id"`
	GroupID     int64  `json:"group_id"`
	RawMessage  string `json:"raw_message"`
	Sender      struct {
		Nickname string `json:"nickname"`
		Card     string `json:"card"`
	} `json:"sender"`
}

func (a *Adapter) handleFrame(ctx context.Context, data []byte) {
	var ev wireEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		a.logger.Debug("undecodable frame", "error", err)
		return
	}
	if ev.SelfID != 0 {
		a.selfID.Store(strconv.FormatInt(ev.SelfID, 10))
	}
	if ev.PostType != "message" {
		return
	}

	parsed := parseCQMessage(ev.RawMessage, a.selfID.Load().(string))
	text := parsed.Text
	if ev.MessageType == "group" {
		var ok bool
		if text, ok = a.trigger.Match(parsed.Text, parsed.AtMe); !ok {
			return
		}
	}

	userID := strconv.FormatInt(ev.UserID, 10)
	event := &models.Event{
		Channel:   models.ChannelOneBot,
		UserID:    userID,
		UserName:  senderName(ev),
		Text:      text,
		MediaURLs: parsed.MediaURLs,
		ToMe:      parsed.AtMe || ev.MessageType == "private",
	}
	if ev.MessageType == "group" {
		event.GroupID = strconv.FormatInt(ev.GroupID, 10)
	}
	if _, ok := a.superusers[userID]; ok {
		event.Superuser = true
	}

	select {
	case a.events <- event:
	case <-ctx.Done():
	default:
		a.logger.Warn("event buffer full, dropping message", "user_id", userID)
	}
}

func senderName(ev wireEvent) string {
	if ev.Sender.Card != "" {
		return ev.Sender.Card
	}
	return ev.Sender.Nickname
}

// action is one OneBot API call.
type action struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
	Echo   string         `json:"echo"`
}

// Send delivers a reply as one or more send_msg actions.
func (a *Adapter) Send(ctx context.Context, ev *models.Event, r *models.Reply) error {
	var messages []string
	switch {
	case len(r.Chunks) > 0:
		messages = r.Chunks
	case r.MediaURL != "":
		msg := cqMedia(r.MediaKind, r.MediaURL)
		if msg == "" {
			return fmt.Errorf("onebot: unsupported media kind %q", r.MediaKind)
		}
		if r.Text != "" {
			msg = cqEscaper.Replace(r.Text) + msg
		}
		messages = []string{msg}
	default:
		messages = []string{cqEscaper.Replace(r.Text)}
	}

	for _, msg := range messages {
		if err := a.sendMsg(ctx, ev, msg); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) sendMsg(ctx context.Context, ev *models.Event, message string) error {
	params := map[string]any{"message": message}
	if ev.IsGroup() {
		params["message_type"] = "group"
		params["group_id"] = jsonNumber(ev.GroupID)
	} else {
		params["message_type"] = "private"
		params["user_id"] = jsonNumber(ev.UserID)
	}

	payload, err := json.Marshal(action{
		Action: "send_msg",
		Params: params,
		Echo:   fmt.Sprintf("send-%d", a.echo.Add(1)),
	})
	if err != nil {
		return fmt.Errorf("onebot: encode action: %w", err)
	}

	conn := a.current()
	if conn == nil {
		return errors.New("onebot: not connected")
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("onebot: send_msg: %w", err)
	}
	return nil
}

func jsonNumber(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

func (a *Adapter) current() *websocket.Conn {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	return a.conn
}

// Stop closes the connection and waits for the read loop to exit.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	if conn := a.current(); conn != nil {
		conn.Close(websocket.StatusNormalClosure, "shutdown")
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
