// Package telegram is the chat front end for subsidy search.
package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kitbuilder587/jgrants-search/internal/metrics"
	"github.com/kitbuilder587/jgrants-search/internal/ratelimit"
	"github.com/kitbuilder587/jgrants-search/internal/search"
)

type BotConfig struct {
	Token             string
	Debug             bool
	RequestsPerMinute int
}

type Bot struct {
	api         *tgbotapi.BotAPI
	logger      *zap.Logger
	metrics     *metrics.Metrics
	handler     *Handler
	rateLimiter *ratelimit.Limiter
	wg          sync.WaitGroup
}

func New(cfg BotConfig, searcher search.Searcher, logger *zap.Logger, m *metrics.Metrics) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	api.Debug = cfg.Debug

	bot := newBot(api, searcher, cfg.RequestsPerMinute, logger, m)

	logger.Info("telegram bot authorized",
		zap.String("username", api.Self.UserName),
	)

	return bot, nil
}

func newBot(api *tgbotapi.BotAPI, searcher search.Searcher, rpm int, logger *zap.Logger, m *metrics.Metrics) *Bot {
	bot := &Bot{
		api:     api,
		logger:  logger,
		metrics: m,
		rateLimiter: ratelimit.New(ratelimit.Config{
			RequestsPerMinute: rpm,
		}),
	}
	bot.handler = NewHandler(HandlerDeps{
		Messenger:   bot,
		Searcher:    searcher,
		RateLimiter: bot.rateLimiter,
		Logger:      logger,
		Metrics:     m,
	})
	return bot
}

func (b *Bot) Run(ctx context.Context) error {
	defer b.rateLimiter.Stop()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("bot started, waiting for updates")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("bot stopping, waiting for handlers to finish")
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			b.logger.Info("all handlers finished")
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			b.wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer b.wg.Done()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	startTime := time.Now()
	if b.metrics != nil {
		b.metrics.IncRequestsInFlight()
		defer b.metrics.DecRequestsInFlight()
	}

	defer func() {
		if r := recover(); r != nil {
			chatID := int64(0)
			if update.Message != nil && update.Message.Chat != nil {
				chatID = update.Message.Chat.ID
			}
			b.logger.Error("panic in update handler",
				zap.Any("panic", r),
				zap.Int64("chat_id", chatID),
			)
			if b.metrics != nil {
				b.metrics.RecordRequest("message", "panic", time.Since(startTime))
			}
		}
	}()

	b.handler.HandleMessage(ctx, update.Message)

	if b.metrics != nil {
		b.metrics.RecordRequest(requestType(update.Message), "processed", time.Since(startTime))
	}
}

func requestType(msg *tgbotapi.Message) string {
	if msg == nil || !msg.IsCommand() {
		return "query"
	}
	switch msg.Command() {
	case "search", "stats":
		return msg.Command()
	default:
		return "command"
	}
}

func (b *Bot) Send(chatID int64, text string) error {
	if b.api == nil {
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendTyping(chatID int64) {
	if b.api == nil {
		return
	}
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	b.api.Send(action)
}
