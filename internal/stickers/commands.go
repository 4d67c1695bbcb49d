package stickers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gardenbot/internal/transport"
	logx "gardenbot/pkg/logx"
)

const pickPrefix = "pick:"

// Commands is the admin-only chat interface for sticker management:
// /add and /change present an item keyboard, the follow-up sticker message
// binds the picked item, and /check_stickers reports coverage.
type Commands struct {
	log     logx.Logger
	adapter transport.Adapter
	reg     *Registry
	items   []string
	adminID int64

	mu      sync.Mutex
	pending map[int64]string
}

func NewCommands(adapter transport.Adapter, reg *Registry, items []string, adminID int64, log logx.Logger) *Commands {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Commands{
		log:     log,
		adapter: adapter,
		reg:     reg,
		items:   items,
		adminID: adminID,
		pending: map[int64]string{},
	}
}

// Run consumes updates until the context ends or the channel closes.
func (c *Commands) Run(ctx context.Context, updates <-chan transport.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			switch u.Kind {
			case transport.UpdateMessage:
				if u.Message != nil {
					c.handleMessage(ctx, u.Message)
				}
			case transport.UpdateCallback:
				if u.Callback != nil {
					c.handleCallback(ctx, u.Callback)
				}
			}
		}
	}
}

func (c *Commands) handleMessage(ctx context.Context, m *transport.Message) {
	if m.StickerID != "" {
		c.handleSticker(ctx, m)
		return
	}
	cmd := commandName(m.Text)
	if cmd == "" {
		return
	}
	if m.FromID != c.adminID {
		c.reply(ctx, m.ChatID, "This bot only takes commands from its admin.")
		c.log.Warn("command from non-admin ignored",
			logx.String("command", cmd), logx.Int64("from", m.FromID))
		return
	}

	switch cmd {
	case "/start":
		c.reply(ctx, m.ChatID, "Garden stock watcher. Commands: /add, /change, /check_stickers.")
	case "/add", "/change":
		c.sendItemKeyboard(ctx, m.ChatID)
	case "/check_stickers":
		c.reportCoverage(ctx, m.ChatID)
	default:
		c.reply(ctx, m.ChatID, "Unknown command.")
	}
}

func (c *Commands) handleCallback(ctx context.Context, cb *transport.Callback) {
	if cb.FromID != c.adminID {
		_ = c.adapter.AnswerCallback(ctx, cb.ID, "admins only")
		return
	}
	item, ok := strings.CutPrefix(cb.Data, pickPrefix)
	if !ok {
		_ = c.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}

	c.mu.Lock()
	c.pending[cb.FromID] = item
	c.mu.Unlock()

	if err := c.adapter.AnswerCallback(ctx, cb.ID, ""); err != nil {
		c.log.Warn("callback answer failed", logx.Err(err))
	}
	c.reply(ctx, cb.ChatID, fmt.Sprintf("Now send the sticker for %q.", item))
}

func (c *Commands) handleSticker(ctx context.Context, m *transport.Message) {
	if m.FromID != c.adminID {
		return
	}
	c.mu.Lock()
	item, ok := c.pending[m.FromID]
	if ok {
		delete(c.pending, m.FromID)
	}
	c.mu.Unlock()
	if !ok {
		c.reply(ctx, m.ChatID, "Pick an item with /add or /change first.")
		return
	}

	if err := c.reg.Set(ctx, item, m.StickerID); err != nil {
		c.log.Error("sticker binding not persisted",
			logx.String("item", item), logx.Err(err))
		c.reply(ctx, m.ChatID, fmt.Sprintf("Bound %q, but saving failed: %v", item, err))
		return
	}
	c.log.Info("sticker bound", logx.String("item", item))
	c.reply(ctx, m.ChatID, fmt.Sprintf("Sticker bound to %q.", item))
}

func (c *Commands) sendItemKeyboard(ctx context.Context, chatID int64) {
	if len(c.items) == 0 {
		c.reply(ctx, chatID, "No items configured.")
		return
	}
	const perRow = 2
	var rows [][]transport.Button
	var row []transport.Button
	for _, name := range c.items {
		row = append(row, transport.Button{Text: name, Data: pickPrefix + name})
		if len(row) == perRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	_, err := c.adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID},
		"Pick the item:", &transport.SendOptions{Keyboard: rows})
	if err != nil {
		c.log.Warn("item keyboard send failed", logx.Err(err))
	}
}

func (c *Commands) reportCoverage(ctx context.Context, chatID int64) {
	target := transport.ChatTarget{ChatID: chatID}
	var missing []string
	for _, name := range c.items {
		id, ok := c.reg.Lookup(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		c.reply(ctx, chatID, name)
		if _, err := c.adapter.SendSticker(ctx, target, id); err != nil {
			c.log.Warn("sticker preview send failed",
				logx.String("item", name), logx.Err(err))
		}
	}
	if len(missing) == 0 {
		c.reply(ctx, chatID, fmt.Sprintf("All %d items have stickers.", len(c.items)))
		return
	}
	c.reply(ctx, chatID, "Missing stickers: "+strings.Join(missing, ", "))
}

func (c *Commands) reply(ctx context.Context, chatID int64, text string) {
	_, err := c.adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID}, text, nil)
	if err != nil {
		c.log.Warn("reply send failed", logx.Err(err))
	}
}

// commandName extracts "/cmd" from the first word, dropping a "@botname"
// suffix. Non-command text yields "".
func commandName(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	word, _, _ := strings.Cut(text, " ")
	word, _, _ = strings.Cut(word, "@")
	return strings.ToLower(word)
}
