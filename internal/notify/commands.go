package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Commander executes an operator command and returns a reply.
type Commander interface {
	Execute(ctx context.Context, command string) (string, error)
}

const pollTimeoutSec = 5

// CommandListener long-polls Telegram and routes "/command" messages from the
// configured chat to a Commander. Messages from any other chat are ignored.
type CommandListener struct {
	bot       *TelegramSender
	commander Commander
	logger    *slog.Logger
	retry     time.Duration
}

// NewCommandListener creates a listener on bot's chat.
func NewCommandListener(bot *TelegramSender, commander Commander, logger *slog.Logger) *CommandListener {
	return &CommandListener{
		bot:       bot,
		commander: commander,
		logger:    logger.With(slog.String("component", "telegram_commands")),
		retry:     5 * time.Second,
	}
}

// Run polls until ctx is cancelled.
func (l *CommandListener) Run(ctx context.Context) error {
	var offset int64
	for {
		updates, err := l.bot.getUpdates(ctx, offset, pollTimeoutSec)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			l.logger.WarnContext(ctx, "poll failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(l.retry):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			l.handle(ctx, u)
		}
	}
}

func (l *CommandListener) handle(ctx context.Context, u incoming) {
	if u.ChatID != l.bot.ChatID() {
		if u.ChatID != "" {
			l.logger.WarnContext(ctx, "ignored message from unknown chat", slog.String("chat_id", u.ChatID))
		}
		return
	}
	cmd, ok := ParseCommand(u.Text)
	if !ok {
		return
	}

	l.logger.InfoContext(ctx, "command received", slog.String("command", cmd))
	reply, err := l.commander.Execute(ctx, cmd)
	if err != nil {
		reply = "error: " + err.Error()
	}
	if err := l.bot.Reply(ctx, u.ChatID, reply); err != nil {
		l.logger.WarnContext(ctx, "reply failed", slog.String("error", err.Error()))
	}
}

// ParseCommand extracts the command from "/cmd" or "/cmd@botname".
func ParseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", false
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(cmd), cmd != ""
}
