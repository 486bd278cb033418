/*
admin.go - Operator panel inside the chat

PURPOSE:
  The /admin command and all admin_* callbacks: reviewing top-up
  requests, approving or rejecting new accounts, inspecting the catalog,
  and the sales summary. Heavier catalog editing (create, update, bulk
  codes) lives on the HTTP admin API; the chat panel covers the
  decisions an operator makes on the move.

NOTIFICATIONS:
  Terminal top-up and account decisions made here push a message to the
  affected user. A fresh pending request pushes a review card to the
  operator.

SEE ALSO:
  - api/handlers.go: the full admin surface over HTTP
*/
package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/warp/storefront/ledger"
	"github.com/warp/storefront/topup"
)

func isAdminCallback(data string) bool {
	return strings.HasPrefix(data, "admin_") ||
		strings.HasPrefix(data, "approve_recharge_") ||
		strings.HasPrefix(data, "reject_recharge_") ||
		strings.HasPrefix(data, "approve_user_") ||
		strings.HasPrefix(data, "reject_user_") ||
		strings.HasPrefix(data, "delete_product_")
}

func (b *Bot) handleAdminCommand(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From) {
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "Unknown command. Try /start."))
		return
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID, "🛠 Admin panel")
	reply.ReplyMarkup = adminMenuKeyboard()
	b.send(reply)
}

func (b *Bot) handleAdminCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if !b.isAdmin(cq.From) {
		b.log.WithField("user", cq.From.ID).Warn("admin callback from non-admin")
		return
	}
	data := cq.Data

	switch {
	case data == "admin_menu":
		b.editOrSend(cq, "🛠 Admin panel", adminMenuKeyboard())
	case data == "admin_recharge":
		b.showPendingRecharges(ctx, cq)
	case data == "admin_users":
		b.showPendingUsers(ctx, cq)
	case data == "admin_products":
		b.showProductAdmin(ctx, cq)
	case data == "admin_sales":
		b.showSalesStats(ctx, cq)
	case strings.HasPrefix(data, "approve_recharge_"):
		b.decideRecharge(ctx, cq, strings.TrimPrefix(data, "approve_recharge_"), true)
	case strings.HasPrefix(data, "reject_recharge_"):
		b.decideRecharge(ctx, cq, strings.TrimPrefix(data, "reject_recharge_"), false)
	case strings.HasPrefix(data, "approve_user_"):
		b.decideUser(ctx, cq, strings.TrimPrefix(data, "approve_user_"), true)
	case strings.HasPrefix(data, "reject_user_"):
		b.decideUser(ctx, cq, strings.TrimPrefix(data, "reject_user_"), false)
	case strings.HasPrefix(data, "delete_product_"):
		b.deleteProduct(ctx, cq, strings.TrimPrefix(data, "delete_product_"))
	}
}

func adminMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Top-up requests", "admin_recharge"),
			tgbotapi.NewInlineKeyboardButtonData("👥 Pending users", "admin_users"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📦 Products", "admin_products"),
			tgbotapi.NewInlineKeyboardButtonData("📊 Sales", "admin_sales"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("« Back", "back"),
		),
	)
}

// =============================================================================
// TOP-UP REVIEW
// =============================================================================

func (b *Bot) showPendingRecharges(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	pending, err := b.topups.ListPending(ctx)
	if err != nil {
		b.log.WithError(err).Error("list pending recharges failed")
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "Could not load requests."))
		return
	}
	if len(pending) == 0 {
		b.editOrSend(cq, "No pending top-up requests. ✨", adminBackKeyboard())
		return
	}

	b.editOrSend(cq, fmt.Sprintf("💳 %d pending request(s), oldest first:", len(pending)), adminBackKeyboard())
	for _, p := range pending {
		b.sendRechargeCard(cq.Message.Chat.ID, p)
	}
}

// sendRechargeCard pushes one reviewable request: the receipt photo when
// we have one, details, and the decision buttons.
func (b *Bot) sendRechargeCard(chatID int64, p topup.PendingRequest) {
	text := fmt.Sprintf("Request %s\n👤 %s (%s)\n💵 %s\n🗓 Transfer: %s\n📅 Submitted: %s",
		p.Request.RequestID, p.UserName, p.UserID,
		b.money(p.Request.Amount), p.Request.TransferDate, formatDate(p.Request.Date))
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "approve_recharge_"+p.Request.RequestID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", "reject_recharge_"+p.Request.RequestID),
		),
	)

	if p.Request.ReceiptPhoto != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(p.Request.ReceiptPhoto))
		photo.Caption = text
		photo.ReplyMarkup = markup
		if _, err := b.api.Send(photo); err == nil {
			return
		}
		// Photo may have expired on Telegram's side; fall through to text.
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	b.send(msg)
}

func (b *Bot) decideRecharge(ctx context.Context, cq *tgbotapi.CallbackQuery, requestID string, approve bool) {
	var (
		decision *topup.Decision
		err      error
	)
	if approve {
		decision, err = b.topups.Approve(ctx, requestID)
	} else {
		decision, err = b.topups.Reject(ctx, requestID)
	}

	switch {
	case errors.Is(err, ledger.ErrAlreadyProcessed):
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "This request was already decided."))
		return
	case errors.Is(err, ledger.ErrRequestNotFound):
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "Request not found."))
		return
	case err != nil:
		b.log.WithError(err).WithField("request", requestID).Error("recharge decision failed")
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "The decision could not be recorded, please retry."))
		return
	}

	b.log.WithFields(map[string]interface{}{
		"request": requestID,
		"status":  decision.Status,
		"user":    decision.UserID,
	}).Info("top-up decided")

	if approve {
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID,
			fmt.Sprintf("✅ Approved %s. %s credited to %s.", requestID, b.money(decision.Amount), decision.UserName)))
		b.notifyUser(decision.UserID,
			fmt.Sprintf("✅ Your top-up of %s was approved!\n💰 New balance: %s",
				b.money(decision.Amount), b.money(decision.NewBalance)))
	} else {
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID,
			fmt.Sprintf("❌ Rejected %s.", requestID)))
		b.notifyUser(decision.UserID,
			fmt.Sprintf("❌ Your top-up request of %s was rejected.\nIf you believe this is a mistake, contact %s.",
				b.money(decision.Amount), b.opts.OwnerContact))
	}
}

// notifyAdminNewRecharge pushes a review card to the operator as soon as
// a request is materialized.
func (b *Bot) notifyAdminNewRecharge(ctx context.Context, userID, requestID string, amount int64, transferDate string) {
	name := userID
	if user, err := b.ledger.GetUser(ctx, userID); err == nil {
		name = user.Name
	}
	text := fmt.Sprintf("🔔 New top-up request\n\nRequest %s\n👤 %s (%s)\n💵 %s\n🗓 Transfer: %s",
		requestID, name, userID, b.money(amount), transferDate)
	msg := tgbotapi.NewMessage(b.opts.AdminID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "approve_recharge_"+requestID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", "reject_recharge_"+requestID),
		),
	)
	b.send(msg)
}

// =============================================================================
// ACCOUNT REVIEW
// =============================================================================

func (b *Bot) showPendingUsers(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	pending, err := b.ledger.PendingUsers(ctx)
	if err != nil {
		b.log.WithError(err).Error("list pending users failed")
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "Could not load pending users."))
		return
	}
	if len(pending) == 0 {
		b.editOrSend(cq, "No accounts awaiting approval. ✨", adminBackKeyboard())
		return
	}

	ids := make([]string, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	b.editOrSend(cq, fmt.Sprintf("👥 %d account(s) awaiting approval:", len(pending)), adminBackKeyboard())
	for _, id := range ids {
		user := pending[id]
		text := fmt.Sprintf("👤 %s (%s)\n📅 Joined: %s", user.Name, id, formatDate(user.CreatedAt))
		msg := tgbotapi.NewMessage(cq.Message.Chat.ID, text)
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "approve_user_"+id),
				tgbotapi.NewInlineKeyboardButtonData("❌ Reject", "reject_user_"+id),
			),
		)
		b.send(msg)
	}
}

func (b *Bot) decideUser(ctx context.Context, cq *tgbotapi.CallbackQuery, userID string, approve bool) {
	if approve {
		if err := b.ledger.ApproveUser(ctx, userID); err != nil {
			b.log.WithError(err).WithField("user", userID).Error("approve user failed")
			b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "Could not approve this user."))
			return
		}
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, fmt.Sprintf("✅ Approved user %s.", userID)))
		b.notifyUser(userID, fmt.Sprintf("✅ Your account was approved. Welcome to %s!", b.opts.StoreName))
		return
	}

	// Rejection deletes the account record; the user can /start again
	// and land back in the review queue.
	if err := b.ledger.DeleteUser(ctx, userID); err != nil {
		b.log.WithError(err).WithField("user", userID).Error("reject user failed")
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "Could not reject this user."))
		return
	}
	b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, fmt.Sprintf("❌ Rejected user %s.", userID)))
	b.notifyUser(userID, "❌ Your account request was declined.")
}

// =============================================================================
// CATALOG AND SALES VIEWS
// =============================================================================

func (b *Bot) showProductAdmin(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	products, err := b.ledger.Products(ctx)
	if err != nil {
		b.log.WithError(err).Error("load products failed")
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "Could not load products."))
		return
	}
	if len(products) == 0 {
		b.editOrSend(cq, "The catalog is empty.", adminBackKeyboard())
		return
	}

	ids := make([]string, 0, len(products))
	for id := range products {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	sb.WriteString("📦 Catalog:\n\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, id := range ids {
		p := products[id]
		status := "🟢"
		if !p.Active {
			status = "⚪️"
		}
		fmt.Fprintf(&sb, "%s %s (%s)\n   %s · %d code(s)\n", status, p.Name, id, b.money(p.Price), len(p.Codes))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete "+p.Name, "delete_product_"+id),
		))
	}
	sb.WriteString("\nUse the HTTP admin API to create products or add codes.")
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("« Back", "admin_menu"),
	))

	b.editOrSend(cq, sb.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) deleteProduct(ctx context.Context, cq *tgbotapi.CallbackQuery, productID string) {
	if err := b.ledger.DeleteProduct(ctx, productID); err != nil {
		b.log.WithError(err).WithField("product", productID).Error("delete product failed")
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "Could not delete this product."))
		return
	}
	b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, fmt.Sprintf("🗑 Deleted %s.", productID)))
	b.showProductAdmin(ctx, cq)
}

func (b *Bot) showSalesStats(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	summary, err := b.ledger.SalesSummary(ctx)
	if err != nil {
		b.log.WithError(err).Error("sales summary failed")
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "Could not load sales stats."))
		return
	}
	text := fmt.Sprintf("📊 Sales\n\n🛒 Total sales: %d\n💵 Revenue: %s\n👥 Unique buyers: %d",
		summary.TotalSales, b.money(summary.TotalRevenue), summary.UniqueBuyers)
	b.editOrSend(cq, text, adminBackKeyboard())
}

// =============================================================================
// HELPERS
// =============================================================================

func adminBackKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("« Back", "admin_menu")),
	)
}

// notifyUser pushes a message to a user's private chat. User ids are the
// numeric Telegram chat ids in string form.
func (b *Bot) notifyUser(userID, text string) {
	chatID, err := parseAmount(userID)
	if err != nil {
		b.log.WithField("user", userID).Warn("cannot notify non-numeric user id")
		return
	}
	b.send(tgbotapi.NewMessage(chatID, text))
}
