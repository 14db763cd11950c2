package transport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ChatTarget addresses a chat by numeric id or by public @username.
type ChatTarget struct {
	ChatID   int64
	Username string
	ThreadID int // telegram forum topic thread id (0 if none)
}

func (t ChatTarget) IsZero() bool { return t.ChatID == 0 && t.Username == "" }

func (t ChatTarget) String() string {
	if t.Username != "" {
		return t.Username
	}
	return strconv.FormatInt(t.ChatID, 10)
}

// ParseChatTarget accepts "-100123456" or "@channel".
func ParseChatTarget(raw string, threadID int) (ChatTarget, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ChatTarget{}, errors.New("chat id is empty")
	}
	if strings.HasPrefix(s, "@") {
		if len(s) < 2 {
			return ChatTarget{}, fmt.Errorf("invalid chat username %q", raw)
		}
		return ChatTarget{Username: s, ThreadID: threadID}, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id == 0 {
		return ChatTarget{}, fmt.Errorf("invalid chat id %q", raw)
	}
	return ChatTarget{ChatID: id, ThreadID: threadID}, nil
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender delivers text to a chat. Long texts may be split into several
// messages; the first message's reference is returned.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
