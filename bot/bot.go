/*
bot.go - Telegram conversation shell

PURPOSE:
  Receives inbound messages and callback queries, tracks nothing but the
  top-up intake session (owned by the topup package), renders menus, and
  delegates every business decision to the ledger and top-up services.
  All formatting and user-facing text lives here; the core returns only
  tagged errors and payloads.

DISPATCH:
  Commands:   /start /help /admin
  Callbacks:  store, product_<id>, buy_<id>, recharge, recharge_<amount>,
              history, check_balance, back, admin_* (see admin.go)
  Photos:     receipt intake while a top-up session awaits one
  Other text: transfer-date intake, otherwise a gentle nudge to the menu

ADMISSION:
  Every interaction passes the rate limiter and a ban check first.
  Purchases additionally require an approved account when the manual
  approval policy is enabled.

SEE ALSO:
  - handlers.go: buyer-facing flows
  - admin.go: operator panel
  - ratelimit.go: admission gates
*/
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/warp/storefront/ledger"
	"github.com/warp/storefront/receipt"
	"github.com/warp/storefront/topup"
)

// Options is the static configuration the shell needs for rendering.
type Options struct {
	AdminID          int64
	StoreName        string
	OwnerContact     string
	Currency         string
	CurrencyExponent int32
	RechargeAmounts  []int64
	BankName         string
	BankAccount      string
	AccountHolder    string
	BankIBAN         string
}

// Bot wires the Telegram transport to the storefront core.
type Bot struct {
	api      *tgbotapi.BotAPI
	ledger   *ledger.Ledger
	topups   *topup.Service
	receipts *receipt.Renderer
	limiter  *RateLimiter
	log      *logrus.Logger
	opts     Options
}

func New(api *tgbotapi.BotAPI, l *ledger.Ledger, t *topup.Service, r *receipt.Renderer,
	limiter *RateLimiter, log *logrus.Logger, opts Options) *Bot {
	return &Bot{
		api:      api,
		ledger:   l,
		topups:   t,
		receipts: r,
		limiter:  limiter,
		log:      log,
		opts:     opts,
	}
}

// Run consumes updates until the context is canceled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 20
	updates := b.api.GetUpdatesChan(u)

	b.log.WithField("bot", b.api.Self.UserName).Info("bot started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithField("panic", r).Error("update handler panicked")
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// =============================================================================
// MESSAGE DISPATCH
// =============================================================================

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	userID := strconv.FormatInt(msg.From.ID, 10)
	chatID := msg.Chat.ID

	if !b.limiter.Allow(userID) {
		b.send(tgbotapi.NewMessage(chatID, "Please wait a moment before your next request."))
		return
	}

	if banned, _ := b.isBanned(ctx, userID); banned {
		b.send(tgbotapi.NewMessage(chatID, "Your account has been banned from this store."))
		return
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.handleStart(ctx, msg)
		case "help":
			b.handleHelp(chatID)
		case "admin":
			b.handleAdminCommand(ctx, msg)
		default:
			b.send(tgbotapi.NewMessage(chatID, "Unknown command. Try /start."))
		}
		return
	}

	if len(msg.Photo) > 0 {
		b.handleReceiptPhoto(ctx, msg, userID)
		return
	}

	b.handleText(ctx, msg, userID)
}

// handleReceiptPhoto feeds a photo into the top-up intake. Photos outside
// an intake session are politely ignored.
func (b *Bot) handleReceiptPhoto(ctx context.Context, msg *tgbotapi.Message, userID string) {
	// Highest resolution is last.
	photo := msg.Photo[len(msg.Photo)-1]

	err := b.topups.AttachReceipt(userID, photo.FileID)
	if err != nil {
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "I wasn't expecting a photo right now."))
		return
	}
	b.send(tgbotapi.NewMessage(msg.Chat.ID,
		"Receipt received.\n\nNow send the transfer date and time in detail.\nExample: 2025-07-01 14:30"))
}

// handleText feeds free text into the top-up intake when a session is
// waiting for the transfer date.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message, userID string) {
	request, err := b.topups.SubmitTransferDate(ctx, userID, msg.Text)
	switch {
	case err == nil:
		confirmation := fmt.Sprintf(
			"Your top-up request has been submitted!\n\nRequest: %s\nAmount: %s\n\nAn operator will review it shortly.",
			request.RequestID, b.money(request.Amount))
		b.send(tgbotapi.NewMessage(msg.Chat.ID, confirmation))
		b.notifyAdminNewRecharge(ctx, userID, request.RequestID, request.Amount, request.TransferDate)
	case isValidation(err):
		b.send(tgbotapi.NewMessage(msg.Chat.ID,
			"Please send a more detailed transfer date and time (at least 5 characters)."))
	default:
		// An intake still waiting on its photo re-prompts for the photo;
		// otherwise nudge back to the menu.
		if sess, ok := b.topups.Sessions().Get(userID); ok && sess.State == topup.StateAwaitingReceipt {
			b.send(tgbotapi.NewMessage(msg.Chat.ID,
				"Please send a PHOTO of the transfer receipt to continue your top-up."))
			return
		}
		b.send(tgbotapi.NewMessage(msg.Chat.ID,
			"I didn't understand that. Please use the menu buttons, or /start."))
	}
}

// =============================================================================
// CALLBACK DISPATCH
// =============================================================================

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// Answer immediately so the client stops its spinner.
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.log.WithError(err).Debug("answer callback failed")
	}
	if cq.Message == nil {
		return
	}

	userID := strconv.FormatInt(cq.From.ID, 10)
	data := cq.Data

	if !b.limiter.Allow(userID) {
		return
	}

	// First contact may arrive through a callback.
	name := fullName(cq.From)
	if _, _, err := b.ledger.RegisterUser(ctx, userID, name); err != nil {
		b.log.WithError(err).WithField("user", userID).Error("register user failed")
	}

	if isAdminCallback(data) {
		b.handleAdminCallback(ctx, cq)
		return
	}

	if banned, _ := b.isBanned(ctx, userID); banned {
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "Your account has been banned from this store."))
		return
	}

	switch {
	case data == "store":
		b.showProducts(ctx, cq)
	case strings.HasPrefix(data, "product_"):
		b.showProductDetails(ctx, cq, strings.TrimPrefix(data, "product_"))
	case strings.HasPrefix(data, "buy_"):
		b.processPurchase(ctx, cq, strings.TrimPrefix(data, "buy_"))
	case data == "recharge":
		b.showRechargeOptions(cq)
	case strings.HasPrefix(data, "recharge_"):
		b.beginRecharge(cq, strings.TrimPrefix(data, "recharge_"))
	case data == "history":
		b.showPurchaseHistory(ctx, cq)
	case data == "check_balance":
		b.showBalance(ctx, cq)
	case data == "back":
		b.backToMain(ctx, cq)
	case data == "out_of_stock":
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "This product is currently out of stock."))
	default:
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "Unknown action."))
	}
}

// =============================================================================
// SMALL HELPERS
// =============================================================================

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.WithError(err).Debug("send failed")
	}
}

// editOrSend tries to edit the message the callback came from, falling
// back to a fresh message (edits fail on photo captions and old messages).
func (b *Bot) editOrSend(cq *tgbotapi.CallbackQuery, text string, markup tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(cq.Message.Chat.ID, cq.Message.MessageID, text, markup)
	if _, err := b.api.Send(edit); err != nil {
		msg := tgbotapi.NewMessage(cq.Message.Chat.ID, text)
		msg.ReplyMarkup = markup
		b.send(msg)
	}
}

func (b *Bot) money(minor int64) string {
	return ledger.FormatAmount(minor, b.opts.Currency, b.opts.CurrencyExponent)
}

func (b *Bot) isBanned(ctx context.Context, userID string) (bool, error) {
	user, err := b.ledger.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.Banned, nil
}

func (b *Bot) isAdmin(from *tgbotapi.User) bool {
	return from != nil && from.ID == b.opts.AdminID
}

func fullName(u *tgbotapi.User) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return sanitize(name)
}

func isValidation(err error) bool {
	return err != nil && ledger.IsClientError(err)
}

func parseAmount(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}
