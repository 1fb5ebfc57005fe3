// Package shop is the shopping mirage: a per-user cart with add, remove,
// view and checkout flows. Carts live in memory; orders are confirmed in
// chat and the cart is cleared.
package shop

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/example/wa-concierge/internal/models"
	"github.com/example/wa-concierge/internal/router"
	"github.com/example/wa-concierge/internal/wa"
)

type line struct {
	Item string
	Qty  int
}

type Mirage struct {
	Sender wa.Sender
	Log    *slog.Logger

	mu    sync.Mutex
	carts map[string][]line
}

func New(sender wa.Sender, log *slog.Logger) *Mirage {
	return &Mirage{Sender: sender, Log: log, carts: make(map[string][]line)}
}

// Count reports the number of cart lines for a user. It feeds the
// conversational context so ambiguous messages bias toward checkout.
func (m *Mirage) Count(user string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.carts[user])
}

func (m *Mirage) HandleBrowse(ctx context.Context, req router.Request) error {
	return m.reply(ctx, req.UserID, "Tell me what you'd like to buy, e.g. 'add 2 bread'. Say 'view cart' anytime.")
}

func (m *Mirage) HandleAdd(ctx context.Context, req router.Request) error {
	item, qty := itemFromRequest(req)
	if item == "" {
		return m.reply(ctx, req.UserID, "What would you like to add? Try: add 2 bread")
	}
	m.mu.Lock()
	m.carts[req.UserID] = append(m.carts[req.UserID], line{Item: item, Qty: qty})
	n := len(m.carts[req.UserID])
	m.mu.Unlock()
	return m.reply(ctx, req.UserID, fmt.Sprintf("Added %d x %s. Your cart has %d item(s).", qty, item, n))
}

func (m *Mirage) HandleRemove(ctx context.Context, req router.Request) error {
	item, _ := itemFromRequest(req)
	if item == "" {
		return m.reply(ctx, req.UserID, "Which item should I remove?")
	}
	m.mu.Lock()
	cart := m.carts[req.UserID]
	kept := cart[:0]
	removed := false
	for _, l := range cart {
		if !removed && strings.EqualFold(l.Item, item) {
			removed = true
			continue
		}
		kept = append(kept, l)
	}
	m.carts[req.UserID] = kept
	m.mu.Unlock()
	if !removed {
		return m.reply(ctx, req.UserID, fmt.Sprintf("I couldn't find %q in your cart.", item))
	}
	return m.reply(ctx, req.UserID, fmt.Sprintf("Removed %s from your cart.", item))
}

func (m *Mirage) HandleView(ctx context.Context, req router.Request) error {
	m.mu.Lock()
	cart := append([]line(nil), m.carts[req.UserID]...)
	m.mu.Unlock()
	if len(cart) == 0 {
		return m.reply(ctx, req.UserID, "Your cart is empty. Tell me what you'd like to buy.")
	}
	var b strings.Builder
	b.WriteString("Your cart:\n")
	for _, l := range cart {
		fmt.Fprintf(&b, "- %d x %s\n", l.Qty, l.Item)
	}
	b.WriteString("Say 'checkout' when you're ready.")
	return m.reply(ctx, req.UserID, b.String())
}

func (m *Mirage) HandleCheckout(ctx context.Context, req router.Request) error {
	m.mu.Lock()
	cart := m.carts[req.UserID]
	delete(m.carts, req.UserID)
	m.mu.Unlock()
	if len(cart) == 0 {
		return m.reply(ctx, req.UserID, "Your cart is empty, so there's nothing to check out yet.")
	}
	total := 0
	for _, l := range cart {
		total += l.Qty
	}
	return m.reply(ctx, req.UserID, fmt.Sprintf("Order placed for %d item(s)! We'll message you with delivery details.", total))
}

func (m *Mirage) reply(ctx context.Context, to, body string) error {
	if _, err := m.Sender.SendText(ctx, to, body); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// itemFromRequest prefers the classifier's extracted fields and falls back
// to stripping the leading verb from the raw text.
func itemFromRequest(req router.Request) (string, int) {
	qty := 1
	if q, ok := req.Intent.Extracted[models.ExtractedQuantity]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(q)); err == nil && n > 0 {
			qty = n
		}
	}
	if item, ok := req.Intent.Extracted[models.ExtractedItem]; ok && strings.TrimSpace(item) != "" {
		return strings.TrimSpace(item), qty
	}

	text := strings.TrimSpace(strings.ToLower(req.Text))
	for _, verb := range []string{"add", "buy", "remove", "order"} {
		if rest, ok := strings.CutPrefix(text, verb+" "); ok {
			text = strings.TrimSpace(rest)
			break
		}
	}
	// A leading count doubles as the quantity: "add 2 bread".
	fields := strings.Fields(text)
	if len(fields) > 1 {
		if n, err := strconv.Atoi(fields[0]); err == nil && n > 0 {
			qty = n
			text = strings.Join(fields[1:], " ")
		}
	}
	if text == "" || text == "cart" || strings.HasPrefix(text, "to cart") {
		return "", qty
	}
	return text, qty
}
