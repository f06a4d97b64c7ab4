package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/verdant/internal/mail"
	"github.com/example/verdant/internal/models"
)

// OrderNotifier tells the shop inbox about new orders.
type OrderNotifier struct {
	mailer  mail.Mailer
	inbox   string
	appName string
}

// NewOrderNotifier returns a notifier. With an empty inbox notifications are skipped.
func NewOrderNotifier(mailer mail.Mailer, inbox, appName string) *OrderNotifier {
	return &OrderNotifier{mailer: mailer, inbox: inbox, appName: appName}
}

// FormatPrice renders an amount with two decimals and thousand separators.
func FormatPrice(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	return sign + b.String() + "." + frac
}

// NotifyNewOrder mails an order summary to the shop inbox.
func (n *OrderNotifier) NotifyNewOrder(ctx context.Context, order *models.Order) error {
	if n == nil || n.inbox == "" {
		return nil
	}

	var items strings.Builder
	for i, item := range order.Items {
		fmt.Fprintf(&items, "%d. %s\n   %d x %s = %s\n",
			i+1,
			item.ProductName,
			item.Quantity,
			FormatPrice(item.Price),
			FormatPrice(item.LineTotal()),
		)
	}

	body := fmt.Sprintf("New order %s\n\n"+
		"Email: %s\n"+
		"Phone: %s\n"+
		"Address: %s\n\n"+
		"Items:\n%s\n"+
		"Total: %s\n"+
		"Status: %s\n",
		order.ID,
		order.Email,
		order.Phone,
		order.Address,
		items.String(),
		FormatPrice(order.TotalPrice),
		order.Status,
	)

	return n.mailer.Send(ctx, mail.Message{
		To:      []string{n.inbox},
		ReplyTo: order.Email,
		Subject: fmt.Sprintf("%s - New order", n.appName),
		Body:    body,
	})
}
