// Package telegram delivers outbound notifications through the Telegram Bot
// API. It is send-only: no updates are polled.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "shipwatch/internal/transport"
	logx "shipwatch/pkg/logx"
)

const DefaultTimeout = 20 * time.Second

type Config struct {
	Token string
	// APIURL overrides the Bot API base URL (tests, local bot API servers).
	APIURL  string
	Timeout time.Duration
}

type Sender struct {
	bot *tele.Bot
	log logx.Logger
}

var _ kit.Sender = (*Sender)(nil)

// New creates a sender. The token is not verified against the API here, so a
// bad token surfaces as a send error instead of a startup failure.
func New(cfg Config, log logx.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sender{bot: b, log: log}, nil
}

// usernameChat addresses a public chat by @username.
type usernameChat string

func (u usernameChat) Recipient() string { return string(u) }

func recipient(to kit.ChatTarget) tele.Recipient {
	if to.Username != "" {
		return usernameChat(to.Username)
	}
	return &tele.Chat{ID: to.ChatID}
}

func (s *Sender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if to.IsZero() {
		return kit.MessageRef{}, errors.New("telegram: empty chat target")
	}
	if opt == nil {
		opt = &kit.SendOptions{}
	}

	chunks := splitText(text, textLimit)
	rcpt := recipient(to)

	var first kit.MessageRef
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		msg, err := s.bot.Send(rcpt, chunk, &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		})
		if err != nil {
			return first, err
		}
		if i == 0 && msg != nil {
			first = kit.MessageRef{ThreadID: to.ThreadID, MessageID: msg.ID}
			if msg.Chat != nil {
				first.ChatID = msg.Chat.ID
			}
		}
	}
	if len(chunks) > 1 {
		s.log.Debug("message split", logx.String("chat", to.String()), logx.Int("parts", len(chunks)))
	}
	return first, nil
}
