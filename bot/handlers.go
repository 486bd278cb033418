/*
handlers.go - Buyer-facing conversation flows

PURPOSE:
  The storefront as the customer sees it: main menu, catalog browsing,
  the purchase confirmation with its PDF receipt, the top-up intake, and
  the balance / history views. Every flow reads or mutates state only
  through the ledger and topup services.

SEE ALSO:
  - bot.go: dispatch and admission
  - admin.go: operator panel
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
	"github.com/warp/storefront/receipt"
	"github.com/warp/storefront/store"
)

// =============================================================================
// MAIN MENU
// =============================================================================

func (b *Bot) mainMenuKeyboard(isAdmin bool) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🛍 Store", "store"),
			tgbotapi.NewInlineKeyboardButtonData("💳 Top Up", "recharge"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💰 My Balance", "check_balance"),
			tgbotapi.NewInlineKeyboardButtonData("🧾 My Purchases", "history"),
		),
	}
	if isAdmin {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🛠 Admin Panel", "admin_menu"),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) mainMenuText(user *store.User) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Welcome to %s, %s!\n\n", b.opts.StoreName, user.Name)
	fmt.Fprintf(&sb, "💰 Balance: %s\n", b.money(user.Balance))
	if user.PendingApproval {
		sb.WriteString("\n⏳ Your account is awaiting approval. You can browse, but purchases are locked until an operator approves you.\n")
	}
	sb.WriteString("\nChoose an option:")
	return sb.String()
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	userID := fmt.Sprintf("%d", msg.From.ID)
	user, created, err := b.ledger.RegisterUser(ctx, userID, fullName(msg.From))
	if err != nil {
		b.log.WithError(err).WithField("user", userID).Error("register user failed")
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "Something went wrong, please try again."))
		return
	}
	if created {
		b.log.WithField("user", userID).Info("new user registered")
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, b.mainMenuText(user))
	reply.ReplyMarkup = b.mainMenuKeyboard(b.isAdmin(msg.From))
	b.send(reply)
}

func (b *Bot) handleHelp(chatID int64) {
	help := fmt.Sprintf(`How this store works:

1. Top up your balance: pick an amount, transfer to our account, send the receipt photo and the transfer date.
2. An operator reviews your top-up and your balance is credited.
3. Buy products from the store - the code is delivered instantly with a PDF invoice.

Questions? Contact %s`, b.opts.OwnerContact)
	b.send(tgbotapi.NewMessage(chatID, help))
}

func (b *Bot) backToMain(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	userID := fmt.Sprintf("%d", cq.From.ID)
	user, err := b.ledger.GetUser(ctx, userID)
	if err != nil {
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "Please /start first."))
		return
	}
	b.editOrSend(cq, b.mainMenuText(user), b.mainMenuKeyboard(b.isAdmin(cq.From)))
}

// =============================================================================
// CATALOG
// =============================================================================

func (b *Bot) showProducts(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	products, err := b.ledger.AvailableProducts(ctx)
	if err != nil {
		b.log.WithError(err).Error("load catalog failed")
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "Could not load the store, please try again."))
		return
	}
	if len(products) == 0 {
		b.editOrSend(cq, "The store is empty right now. Check back soon!", backKeyboard())
		return
	}

	ids := make([]string, 0, len(products))
	for id := range products {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, id := range ids {
		p := products[id]
		label := fmt.Sprintf("%s — %s", p.Name, b.money(p.Price))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "product_"+id),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("« Back", "back"),
	))

	b.editOrSend(cq, "🛍 Available products:", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) showProductDetails(ctx context.Context, cq *tgbotapi.CallbackQuery, productID string) {
	product, err := b.ledger.GetProduct(ctx, productID)
	if err != nil {
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "That product is no longer available."))
		return
	}
	userID := fmt.Sprintf("%d", cq.From.ID)
	user, err := b.ledger.GetUser(ctx, userID)
	if err != nil {
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "Please /start first."))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📦 %s\n\n", product.Name)
	if product.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", product.Description)
	}
	fmt.Fprintf(&sb, "💵 Price: %s\n", b.money(product.Price))
	fmt.Fprintf(&sb, "📦 In stock: %d\n", len(product.Codes))
	fmt.Fprintf(&sb, "💰 Your balance: %s\n", b.money(user.Balance))

	var buyRow []tgbotapi.InlineKeyboardButton
	switch {
	case !product.InStock():
		buyRow = tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Out of stock", "out_of_stock"))
	case user.Balance < product.Price:
		shortfall := product.Price - user.Balance
		fmt.Fprintf(&sb, "\n⚠️ You need %s more to buy this.", b.money(shortfall))
		buyRow = tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Top Up", "recharge"))
	default:
		buyRow = tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Buy now", "buy_"+productID))
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(
		buyRow,
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("« Back", "store")),
	)
	b.editOrSend(cq, sb.String(), markup)
}

// =============================================================================
// PURCHASE
// =============================================================================

func (b *Bot) processPurchase(ctx context.Context, cq *tgbotapi.CallbackQuery, productID string) {
	userID := fmt.Sprintf("%d", cq.From.ID)
	chatID := cq.Message.Chat.ID

	user, err := b.ledger.GetUser(ctx, userID)
	if err != nil {
		b.send(tgbotapi.NewMessage(chatID, "Please /start first."))
		return
	}
	if user.PendingApproval {
		b.send(tgbotapi.NewMessage(chatID, "Your account is still awaiting approval. Purchases are locked until then."))
		return
	}

	result, err := b.ledger.Purchase(ctx, userID, productID)
	if err != nil {
		b.replyPurchaseError(chatID, err)
		return
	}

	b.log.WithFields(map[string]interface{}{
		"user":    userID,
		"product": productID,
		"invoice": result.InvoiceID,
	}).Info("purchase completed")

	var sb strings.Builder
	sb.WriteString("✅ Purchase successful!\n\n")
	fmt.Fprintf(&sb, "📦 %s\n", result.ProductName)
	fmt.Fprintf(&sb, "💵 Paid: %s\n", b.money(result.Price))
	fmt.Fprintf(&sb, "💰 New balance: %s\n", b.money(result.NewBalance))
	fmt.Fprintf(&sb, "🧾 Invoice: %s\n\n", result.InvoiceID)
	fmt.Fprintf(&sb, "Your code:\n`%s`", result.Code)

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	b.send(msg)

	b.sendReceipt(chatID, result)
}

func (b *Bot) replyPurchaseError(chatID int64, err error) {
	var insufficient *ledger.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		text := fmt.Sprintf("⚠️ Insufficient balance.\n\nYou have %s but this costs %s.\nTop up at least %s to complete the purchase.",
			b.money(insufficient.Available), b.money(insufficient.Required), b.money(insufficient.Shortfall))
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💳 Top Up", "recharge")),
		)
		b.send(msg)
	case errors.Is(err, ledger.ErrOutOfStock):
		b.send(tgbotapi.NewMessage(chatID, "❌ Sorry, this product just sold out."))
	case errors.Is(err, ledger.ErrProductNotFound):
		b.send(tgbotapi.NewMessage(chatID, "That product is no longer available."))
	default:
		b.log.WithError(err).Error("purchase failed")
		b.send(tgbotapi.NewMessage(chatID, "The purchase could not be completed. Your balance was not charged."))
	}
}

// sendReceipt renders and delivers the PDF invoice. Delivery is best
// effort; the purchase already succeeded.
func (b *Bot) sendReceipt(chatID int64, result *ledger.PurchaseResult) {
	pdf, err := b.receipts.Render(receipt.Data{
		InvoiceID:   result.InvoiceID,
		ProductName: result.ProductName,
		Price:       result.Price,
		Code:        result.Code,
		Timestamp:   result.Timestamp,
		UserID:      result.UserID,
		UserName:    result.UserName,
	})
	if err != nil {
		b.log.WithError(err).WithField("invoice", result.InvoiceID).Error("receipt render failed")
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  result.InvoiceID + ".pdf",
		Bytes: pdf,
	})
	doc.Caption = "Your invoice 🧾"
	b.send(doc)
}

// =============================================================================
// TOP-UP INTAKE
// =============================================================================

func (b *Bot) showRechargeOptions(cq *tgbotapi.CallbackQuery) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(b.opts.RechargeAmounts); i += 2 {
		row := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				b.money(b.opts.RechargeAmounts[i]),
				fmt.Sprintf("recharge_%d", b.opts.RechargeAmounts[i])),
		}
		if i+1 < len(b.opts.RechargeAmounts) {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				b.money(b.opts.RechargeAmounts[i+1]),
				fmt.Sprintf("recharge_%d", b.opts.RechargeAmounts[i+1])))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("« Back", "back"),
	))

	b.editOrSend(cq, "💳 Choose a top-up amount:", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) beginRecharge(cq *tgbotapi.CallbackQuery, amountText string) {
	amount, err := parseAmount(amountText)
	if err != nil {
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "Unknown amount."))
		return
	}
	userID := fmt.Sprintf("%d", cq.From.ID)
	if err := b.topups.Begin(userID, amount); err != nil {
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "Unknown amount."))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "💳 Top-up of %s\n\n", b.money(amount))
	sb.WriteString("Transfer the amount to:\n")
	if b.opts.BankName != "" {
		fmt.Fprintf(&sb, "🏦 Bank: %s\n", b.opts.BankName)
	}
	if b.opts.BankAccount != "" {
		fmt.Fprintf(&sb, "🔢 Account: %s\n", b.opts.BankAccount)
	}
	if b.opts.AccountHolder != "" {
		fmt.Fprintf(&sb, "👤 Holder: %s\n", b.opts.AccountHolder)
	}
	if b.opts.BankIBAN != "" {
		fmt.Fprintf(&sb, "🌐 IBAN: %s\n", b.opts.BankIBAN)
	}
	sb.WriteString("\nThen send a PHOTO of the transfer receipt here.")

	b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, sb.String()))
}

// =============================================================================
// BALANCE AND HISTORY
// =============================================================================

func (b *Bot) showBalance(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	userID := fmt.Sprintf("%d", cq.From.ID)
	user, err := b.ledger.GetUser(ctx, userID)
	if err != nil {
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "Please /start first."))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "💰 Balance: %s\n", b.money(user.Balance))
	fmt.Fprintf(&sb, "🛒 Purchases: %d\n", user.PurchaseCount)
	fmt.Fprintf(&sb, "💸 Total spent: %s", b.money(user.TotalSpent))

	b.editOrSend(cq, sb.String(), backKeyboard())
}

// historyDisplayLimit caps the purchases shown in chat; older ones stay
// in the store and the admin API can still see them.
const historyDisplayLimit = 10

func (b *Bot) showPurchaseHistory(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	userID := fmt.Sprintf("%d", cq.From.ID)
	sales, err := b.ledger.PurchasesOf(ctx, userID)
	if err != nil {
		b.log.WithError(err).Error("load purchases failed")
		b.send(tgbotapi.NewMessage(cq.Message.Chat.ID, "Could not load your purchases, please try again."))
		return
	}
	if len(sales) == 0 {
		b.editOrSend(cq, "You haven't bought anything yet. Browse the store!", backKeyboard())
		return
	}

	shown := sales
	if len(shown) > historyDisplayLimit {
		shown = shown[len(shown)-historyDisplayLimit:]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🧾 Your last %d purchases:\n\n", len(shown))
	// Newest first.
	for i := len(shown) - 1; i >= 0; i-- {
		sale := shown[i]
		fmt.Fprintf(&sb, "• %s — %s\n  %s · %s\n",
			sale.Product, b.money(sale.Price), formatDate(sale.Date), sale.InvoiceID)
	}

	b.editOrSend(cq, sb.String(), backKeyboard())
}

func backKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("« Back", "back")),
	)
}
