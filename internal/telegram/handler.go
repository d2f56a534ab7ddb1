package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kitbuilder587/jgrants-search/internal/domain"
	"github.com/kitbuilder587/jgrants-search/internal/metrics"
	"github.com/kitbuilder587/jgrants-search/internal/ratelimit"
	"github.com/kitbuilder587/jgrants-search/internal/search"
	"github.com/kitbuilder587/jgrants-search/internal/stats"
)

// Messenger is the outgoing side of the chat.
type Messenger interface {
	Send(chatID int64, text string) error
	SendTyping(chatID int64)
}

type HandlerDeps struct {
	Messenger   Messenger
	Searcher    search.Searcher
	RateLimiter *ratelimit.Limiter
	Logger      *zap.Logger
	Metrics     *metrics.Metrics

	// optional, defaults to time.Now
	Clock func() time.Time
}

type Handler struct {
	out         Messenger
	searcher    search.Searcher
	rateLimiter *ratelimit.Limiter
	logger      *zap.Logger
	metrics     *metrics.Metrics
	now         func() time.Time

	mu         sync.Mutex
	debugChats map[int64]bool
}

func NewHandler(deps HandlerDeps) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Handler{
		out:         deps.Messenger,
		searcher:    deps.Searcher,
		rateLimiter: deps.RateLimiter,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		now:         deps.Clock,
		debugChats:  make(map[int64]bool),
	}
}

const (
	msgGenericError = "エラーが発生しました。しばらくしてから再度お試しください。"
	msgRateLimited  = "リクエストが多すぎます。%d秒後に再度お試しください。"
	msgUnknown      = "不明なコマンドです。/help で使い方を確認してください。"
	msgUsageSearch  = "使い方: /search キーワード [条件=値 ...]\n例: /search IT導入 area=全国"
	msgUsageStats   = "使い方: /stats キーワード [条件=値 ...]\n例: /stats ものづくり"
)

func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	h.logger.Info("received message",
		zap.Int64("user_id", msg.From.ID),
		zap.String("username", msg.From.UserName),
		zap.Bool("is_command", msg.IsCommand()),
	)

	if msg.IsCommand() {
		h.handleCommand(ctx, msg)
	} else {
		h.handleSearch(ctx, msg, msg.Text)
	}
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		h.handleStart(msg)
	case "help":
		h.handleHelp(msg)
	case "search":
		args := normalizeSpaces(msg.CommandArguments())
		if args == "" {
			h.send(msg.Chat.ID, msgUsageSearch)
			return
		}
		h.handleSearch(ctx, msg, args)
	case "stats":
		args := normalizeSpaces(msg.CommandArguments())
		if args == "" {
			h.send(msg.Chat.ID, msgUsageStats)
			return
		}
		h.handleStats(ctx, msg, args)
	case "debug":
		h.handleDebug(msg)
	default:
		h.send(msg.Chat.ID, msgUnknown)
	}
}

func (h *Handler) handleStart(msg *tgbotapi.Message) {
	h.send(msg.Chat.ID, `ようこそ！Jグランツの補助金を検索できます。

キーワードを送信するとそのまま検索します（2文字以上）。
/help で使い方を確認できます。`)
}

func (h *Handler) handleHelp(msg *tgbotapi.Message) {
	helpText := `<b>使えるコマンド:</b>

/search キーワード [条件=値 ...] - 補助金を検索
/stats キーワード [条件=値 ...] - 検索結果の統計情報
/debug - 詳細表示（試行回数・キャッシュ・エラー詳細）の切り替え
/help - このヘルプを表示

キーワードだけを送信しても検索できます。

<b>条件:</b>
• area=全国 / 関東・甲信越地方 など
• industry=製造業 / 情報通信業 など
• employees=20名以下 / 従業員数の制約なし など
• sort=acceptance_end_datetime / acceptance_start_datetime / created_date
• order=asc / desc
• acceptance=1（受付中のみ・既定）/ 0（すべて）

<b>例:</b>
• IT導入
• /search ものづくり area=全国 order=desc
• /stats 事業承継`

	h.send(msg.Chat.ID, helpText)
}

func (h *Handler) handleDebug(msg *tgbotapi.Message) {
	h.mu.Lock()
	on := !h.debugChats[msg.Chat.ID]
	if on {
		h.debugChats[msg.Chat.ID] = true
	} else {
		delete(h.debugChats, msg.Chat.ID)
	}
	h.mu.Unlock()

	if on {
		h.send(msg.Chat.ID, "デバッグ表示: ON")
	} else {
		h.send(msg.Chat.ID, "デバッグ表示: OFF")
	}
}

func (h *Handler) debugEnabled(chatID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.debugChats[chatID]
}

func (h *Handler) handleSearch(ctx context.Context, msg *tgbotapi.Message, args string) {
	query, res, ok := h.runSearch(ctx, msg, args)
	if !ok {
		return
	}

	text := FormatSearchResult(query, res)
	if h.debugEnabled(msg.Chat.ID) {
		text += "\n" + FormatDebug(res)
	}
	h.sendLong(msg.Chat.ID, text)
}

func (h *Handler) handleStats(ctx context.Context, msg *tgbotapi.Message, args string) {
	query, res, ok := h.runSearch(ctx, msg, args)
	if !ok {
		return
	}

	text := FormatOverview(query, stats.Compute(res, h.now()))
	if h.debugEnabled(msg.Chat.ID) {
		text += "\n" + FormatDebug(res)
	}
	h.sendLong(msg.Chat.ID, text)
}

// runSearch covers what /search, /stats and plain text share: rate limit,
// parsing, validation and the search call. On failure it has already
// replied and ok is false.
func (h *Handler) runSearch(ctx context.Context, msg *tgbotapi.Message, args string) (query domain.SearchQuery, res *domain.SearchResult, ok bool) {
	if h.rateLimiter != nil && !h.rateLimiter.Allow(msg.From.ID) {
		retry := h.rateLimiter.RetryAfter(msg.From.ID)
		h.logger.Warn("rate limit exceeded",
			zap.Int64("user_id", msg.From.ID),
			zap.Duration("retry_after", retry),
		)
		if h.metrics != nil {
			h.metrics.RecordRateLimitHit()
		}
		h.send(msg.Chat.ID, fmt.Sprintf(msgRateLimited, int(retry.Seconds())))
		return query, nil, false
	}

	keyword, filters := ParseSearchArgs(args)
	query, err := domain.NewSearchQuery(keyword, filters)
	if err == nil {
		if ferr := domain.ValidateFilters(query.Filters()); ferr != nil {
			err = domain.NewValidationError(ferr)
		}
	}
	if err != nil {
		h.replyError(msg.Chat.ID, err)
		return query, nil, false
	}

	h.out.SendTyping(msg.Chat.ID)

	h.logger.Info("processing search",
		zap.Int64("user_id", msg.From.ID),
		zap.String("query", query.String()),
	)

	res, err = h.searcher.Search(ctx, query)
	if err != nil {
		h.logger.Error("search failed",
			zap.Error(err),
			zap.Int64("user_id", msg.From.ID),
			zap.String("kind", string(domain.KindOf(err))),
		)
		h.replyError(msg.Chat.ID, err)
		return query, nil, false
	}
	return query, res, true
}

func (h *Handler) replyError(chatID int64, err error) {
	text := mapErrorToMessage(err)
	if h.debugEnabled(chatID) {
		text += "\n\n" + FormatErrorDebug(err)
	}
	h.send(chatID, text)
}

func (h *Handler) send(chatID int64, text string) {
	if err := h.out.Send(chatID, text); err != nil {
		h.logger.Error("failed to send message", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (h *Handler) sendLong(chatID int64, text string) {
	for _, m := range SplitMessage(text, MaxMessageLength) {
		h.send(chatID, m)
	}
}

func mapErrorToMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyKeyword):
		return "キーワードを入力してください。"
	case errors.Is(err, domain.ErrKeywordTooShort):
		return fmt.Sprintf("キーワードは%d文字以上で入力してください。", domain.MinKeywordLength)
	case errors.Is(err, domain.ErrKeywordTooLong):
		return fmt.Sprintf("キーワードが長すぎます（最大%d文字）。", domain.MaxKeywordLength)
	case errors.Is(err, domain.ErrInvalidFilter):
		return "検索条件の値が正しくありません。/help で指定できる値を確認してください。"
	case errors.Is(err, domain.ErrValidation):
		return "検索条件が正しくありません。"
	case errors.Is(err, domain.ErrBadRequest):
		return "検索条件がJグランツに受け付けられませんでした。条件を見直してください。"
	case errors.Is(err, domain.ErrTimeout):
		return "Jグランツからの応答がタイムアウトしました。しばらくしてから再度お試しください。"
	case errors.Is(err, domain.ErrNetwork):
		return "Jグランツに接続できませんでした。しばらくしてから再度お試しください。"
	case errors.Is(err, domain.ErrServerError):
		return "Jグランツ側でエラーが発生しています。しばらくしてから再度お試しください。"
	case errors.Is(err, domain.ErrUnexpected):
		return "Jグランツから想定外の応答がありました。"
	default:
		return msgGenericError
	}
}
