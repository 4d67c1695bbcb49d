package watch

import (
	"context"
	"time"

	"gardenbot/internal/retry"
	"gardenbot/internal/stock"
	"gardenbot/internal/transport"
	logx "gardenbot/pkg/logx"
)

const (
	deleteAttempts = 5
	deleteBackoff  = time.Second
)

// notifier handles one section's notification lifecycle: period gating,
// deletion of the previous round's message, and per-item sticker sends.
type notifier struct {
	log     logx.Logger
	adapter transport.Adapter
	tokens  TokenSource
	target  transport.ChatTarget

	// sleep between delete retries; swapped out in tests.
	deleteBackoff time.Duration
}

// considerSection decides whether the section gets a fresh notification and
// performs it. The returned state advances only when at least one sticker
// was actually sent; a section is never notified twice within one period,
// regardless of content churn inside that window.
func (n *notifier) considerSection(ctx context.Context, sec Section, items []stock.Item, now time.Time, st SectionState) (bool, SectionState) {
	out := st
	if len(items) == 0 {
		n.log.Debug("section empty", logx.String("section", sec.Name))
		return false, out
	}

	// Stale persisted periods (midnight rollover, malformed data) are
	// cleared, never compared.
	if !out.LastPeriod.IsZero() && out.LastPeriod.ExpiredAt(now) {
		n.log.Debug("last period expired; clearing",
			logx.String("section", sec.Name), logx.String("period", out.LastPeriod.Label()))
		out.LastPeriod = stock.Period{}
	}

	period := stock.PeriodAt(now, sec.Cadence)
	if out.LastPeriod.Equal(period) {
		n.log.Info("section already notified this period",
			logx.String("section", sec.Name), logx.String("period", period.Label()))
		return false, out
	}

	n.deleteLast(ctx, sec.Name, out.LastMessage)

	sent := 0
	var first transport.MessageRef
	for _, it := range items {
		token, ok := n.tokens.Lookup(it.Name)
		if !ok {
			n.log.Debug("no sticker for item; skipping",
				logx.String("section", sec.Name), logx.String("item", it.Name))
			continue
		}
		ref, err := n.adapter.SendSticker(ctx, n.target, token)
		if err != nil {
			// Error level routes to the operator alert sink; keep going with
			// the remaining items.
			n.log.Error("sticker send failed",
				logx.String("section", sec.Name), logx.String("item", it.Name), logx.Err(err))
			continue
		}
		if sent == 0 {
			first = ref
		}
		sent++
	}

	if sent == 0 {
		n.log.Warn("no stickers sent for section", logx.String("section", sec.Name))
		return false, out
	}

	// Only the first handle is retained: deleting it removes the section's
	// post as a unit next round.
	out.LastMessage = first
	out.LastPeriod = period
	n.log.Info("section notified",
		logx.String("section", sec.Name),
		logx.String("period", period.Label()),
		logx.Int("sent", sent),
		logx.Int("first_message_id", first.MessageID))
	return true, out
}

// deleteLast removes the previous round's message, retrying transient
// failures. Exhausting retries is logged but never blocks new content; a
// stale message left behind beats a missing notification.
func (n *notifier) deleteLast(ctx context.Context, section string, ref transport.MessageRef) {
	if ref.MessageID == 0 {
		return
	}
	backoff := n.deleteBackoff
	if backoff <= 0 {
		backoff = deleteBackoff
	}
	err := retry.Do(ctx, deleteAttempts, backoff, func(attempt int) error {
		if err := n.adapter.DeleteMessage(ctx, ref); err != nil {
			n.log.Warn("delete of previous message failed",
				logx.String("section", section),
				logx.Int("attempt", attempt),
				logx.Int("message_id", ref.MessageID),
				logx.Err(err))
			return err
		}
		return nil
	})
	if err != nil {
		n.log.Error("giving up deleting previous message",
			logx.String("section", section), logx.Int("message_id", ref.MessageID), logx.Err(err))
	}
}
