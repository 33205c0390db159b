package world

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/brickd-project/brickd/internal/network"
	"github.com/brickd-project/brickd/internal/protocol"
)

// Replies sent to a player whose chat message was refused.
const (
	ReplyMuted      = "You are muted."
	ReplyTooFast    = "You're chatting too fast!"
	ReplyNoSwearing = "Don't swear! Your message has not been sent."
)

const defaultTitleColor = "#ffde0a"

// ProfanityFilter decides whether a chat message may be shown.
type ProfanityFilter interface {
	IsSwear(message string) bool
}

// ChatEvent is a chat line from a player.
type ChatEvent struct {
	Player  *Player
	Message string
	// Title is the fully formatted line as it would be broadcast.
	Title string
}

// GenerateTitle formats a chat line with the speaker's name. A chat colour
// wins over the admin style, which wins over the team colour.
func (w *World) GenerateTitle(p *Player, message string) string {
	var title string
	switch {
	case p.ChatColor != "":
		title = fmt.Sprintf(`[%s]%s\c1:\c0 %s`, p.ChatColor, p.Username, message)
	case p.Admin:
		title = fmt.Sprintf(`[%s]%s\c1:\c0 [%s]%s`, defaultTitleColor, p.Username, defaultTitleColor, message)
	case p.Team != nil:
		title = fmt.Sprintf(`[%s]%s\c1:\c0 %s`, p.Team.Color, p.Username, message)
	default:
		title = fmt.Sprintf(`[%s]%s\c1:\c0 %s`, defaultTitleColor, p.Username, message)
	}
	return protocol.FormatHex(title)
}

// MessageAll sends a chat message from the player to everyone, subject to
// mute, rate limit, length and profanity checks.
func (p *Player) MessageAll(message string) *network.Delivery {
	return p.w.chat(p, message)
}

func (w *World) chatAllowed(userID uint32) bool {
	if w.opts.ChatRateLimit <= 0 {
		return true
	}
	lim, ok := w.chatLimits[userID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(w.opts.ChatRateLimit), 1)
		w.chatLimits[userID] = lim
	}
	return lim.Allow()
}

func truncateMessage(message string, limit int) string {
	runes := []rune(message)
	if len(runes) <= limit {
		return message
	}
	return string(runes[:limit]) + "..."
}

func (w *World) chat(p *Player, message string) *network.Delivery {
	if p.Muted {
		return p.Message(ReplyMuted)
	}
	if !w.chatAllowed(p.UserID) {
		return p.Message(ReplyTooFast)
	}

	message = truncateMessage(message, w.opts.ChatMaxLength)
	title := w.GenerateTitle(p, message)

	if w.opts.Filter != nil && w.opts.Filter.IsSwear(message) {
		return p.Message(ReplyNoSwearing)
	}

	p.log.Info().Str("text", message).Msg("chat")
	w.metrics.ChatMessage()

	ev := ChatEvent{Player: p, Message: message, Title: title}
	w.Chatted.Emit(ev)
	p.Chatted.Emit(message)

	if w.ChatOverride.Len() > 0 {
		w.ChatOverride.Emit(ev)
		return &network.Delivery{}
	}
	return w.broadcastExcept(protocol.BuildRawChat(title), p.BlockedBy()...)
}
