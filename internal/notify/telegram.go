package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

const telegramAPI = "https://api.telegram.org"

// TelegramSender talks to the Telegram Bot API. Besides Send it exposes the
// getUpdates long poll used by CommandListener.
type TelegramSender struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

// NewTelegramSender creates a TelegramSender for a bot token and chat ID.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		token:   token,
		chatID:  chatID,
		baseURL: telegramAPI,
		client:  defaultHTTPClient(),
	}
}

func (t *TelegramSender) method(name string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, name)
}

// Send posts title in bold followed by message to the configured chat.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	return t.sendText(ctx, t.chatID, fmt.Sprintf("*%s*\n%s", title, message), "Markdown")
}

// Reply sends plain text to a chat.
func (t *TelegramSender) Reply(ctx context.Context, chatID, text string) error {
	return t.sendText(ctx, chatID, text, "")
}

func (t *TelegramSender) sendText(ctx context.Context, chatID, text, parseMode string) error {
	payload := map[string]string{"chat_id": chatID, "text": text}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	if err := postJSON(ctx, t.client, t.method("sendMessage"), payload, nil); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

// Name implements Sender.
func (t *TelegramSender) Name() string { return "telegram" }

// ChatID returns the configured chat.
func (t *TelegramSender) ChatID() string { return t.chatID }

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type updatesResponse struct {
	OK          bool     `json:"ok"`
	Result      []update `json:"result"`
	Description string   `json:"description"`
}

// incoming is one text message from a chat.
type incoming struct {
	UpdateID int64
	ChatID   string
	Text     string
}

// getUpdates long-polls for messages after offset.
func (t *TelegramSender) getUpdates(ctx context.Context, offset int64, timeoutSec int) ([]incoming, error) {
	payload := map[string]any{"offset": offset, "timeout": timeoutSec, "allowed_updates": []string{"message"}}
	var resp updatesResponse
	if err := postJSON(ctx, t.client, t.method("getUpdates"), payload, &resp); err != nil {
		return nil, fmt.Errorf("telegram: get updates: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("telegram: get updates: %w", errors.New(resp.Description))
	}

	out := make([]incoming, 0, len(resp.Result))
	for _, u := range resp.Result {
		in := incoming{UpdateID: u.UpdateID}
		if u.Message != nil {
			in.ChatID = strconv.FormatInt(u.Message.Chat.ID, 10)
			in.Text = u.Message.Text
		}
		out = append(out, in)
	}
	return out, nil
}
