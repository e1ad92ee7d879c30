// Package telegram implements a Telegram channel adapter using long
// polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/pe200012/llmq-horizon/internal/channels"
	"github.com/pe200012/llmq-horizon/internal/config"
	"github.com/pe200012/llmq-horizon/pkg/models"
)

const eventBuffer = 100

// Adapter bridges Telegram chats to the bot.
type Adapter struct {
	cfg        config.TelegramConfig
	trigger    channels.Trigger
	superusers map[string]struct{}
	logger     *slog.Logger

	bot    *bot.Bot
	events chan *models.Event
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAdapter creates a Telegram adapter.
func NewAdapter(cfg config.TelegramConfig, trigger channels.Trigger, logger *slog.Logger) *Adapter {
	superusers := make(map[string]struct{}, len(cfg.Superusers))
	for _, id := range cfg.Superusers {
		superusers[id] = struct{}{}
	}
	return &Adapter{
		cfg:        cfg,
		trigger:    trigger,
		superusers: superusers,
		logger:     logger.With("adapter", "telegram"),
		events:     make(chan *models.Event, eventBuffer),
	}
}

func (a *Adapter) Type() models.ChannelType     { return models.ChannelTelegram }
func (a *Adapter) Events() <-chan *models.Event { return a.events }

// Start creates the bot client and begins long polling.
func (a *Adapter) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	b, err := bot.New(a.cfg.Token, bot.WithDefaultHandler(a.handleUpdate))
	if err != nil {
		cancel()
		return fmt.Errorf("telegram: create bot: %w", err)
	}
	a.bot = b

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer close(a.events)
		a.bot.Start(ctx)
	}()

	a.logger.Info("telegram adapter started")
	return nil
}

func (a *Adapter) handleUpdate(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		return
	}

	isGroup := msg.Chat.Type == "group" || msg.Chat.Type == "supergroup"
	text := msg.Text
	if isGroup {
		toMe := mentionsBot(msg, b)
		var ok bool
		if text, ok = a.trigger.Match(text, toMe); !ok {
			return
		}
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	event := &models.Event{
		Channel:  models.ChannelTelegram,
		UserID:   userID,
		UserName: msg.From.FirstName,
		Text:     text,
		ToMe:     !isGroup || mentionsBot(msg, b),
	}
	if isGroup {
		event.GroupID = strconv.FormatInt(msg.Chat.ID, 10)
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

// mentionsBot reports whether the message at-mentions the bot username.
func mentionsBot(msg *tgmodels.Message, b *bot.Bot) bool {
	for _, entity := range msg.Entities {
		if entity.Type == tgmodels.MessageEntityTypeMention {
			return true
		}
	}
	return msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil && msg.ReplyToMessage.From.IsBot
}

// Send delivers a reply to the chat ev came from.
func (a *Adapter) Send(ctx context.Context, ev *models.Event, r *models.Reply) error {
	if a.bot == nil {
		return fmt.Errorf("telegram: not started")
	}
	chatID := chatIDFor(ev)

	if r.MediaURL != "" {
		if err := a.sendMedia(ctx, chatID, r); err != nil {
			return err
		}
		if r.Text == "" {
			return nil
		}
	}

	texts := r.Chunks
	if len(texts) == 0 && r.Text != "" {
		texts = []string{r.Text}
	}
	for _, text := range texts {
		_, err := a.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   text,
		})
		if err != nil {
			return fmt.Errorf("telegram: send message: %w", err)
		}
	}
	return nil
}

func (a *Adapter) sendMedia(ctx context.Context, chatID any, r *models.Reply) error {
	var err error
	switch r.MediaKind {
	case "image":
		_, err = a.bot.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID: chatID,
			Photo:  &tgmodels.InputFileString{Data: r.MediaURL},
		})
	case "video":
		_, err = a.bot.SendVideo(ctx, &bot.SendVideoParams{
			ChatID: chatID,
			Video:  &tgmodels.InputFileString{Data: r.MediaURL},
		})
	case "audio":
		_, err = a.bot.SendAudio(ctx, &bot.SendAudioParams{
			ChatID: chatID,
			Audio:  &tgmodels.InputFileString{Data: r.MediaURL},
		})
	default:
		return fmt.Errorf("telegram: unsupported media kind %q", r.MediaKind)
	}
	if err != nil {
		return fmt.Errorf("telegram: send %s: %w", r.MediaKind, err)
	}
	return nil
}

func chatIDFor(ev *models.Event) any {
	id := ev.UserID
	if ev.IsGroup() {
		id = ev.GroupID
	}
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

// Stop halts long polling and waits for the update loop to drain.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
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
