package notifier

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// CommandHandler is called when a user command is received.
type CommandHandler func(command string) string

// telegramUpdate represents a Telegram update from long polling.
type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
	} `json:"message"`
}

// StartPolling begins long-polling for Telegram commands. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	offset := 0
	client := &http.Client{Timeout: 35 * time.Second, Transport: t.Client.Transport}

	for {
		select {
		case <-ctx.Done():
			t.log.Info().Msg("telegram polling stopped")
			return
		default:
		}

		next, err := t.poll(ctx, client, offset, handler)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.log.Warn().Err(err).Msg("polling request failed")
			time.Sleep(5 * time.Second)
			continue
		}
		offset = next
	}
}

// poll fetches one batch of updates and returns the next offset.
func (t *TelegramNotifier) poll(ctx context.Context, client *http.Client, offset int, handler CommandHandler) (int, error) {
	var updates []telegramUpdate
	if err := t.call(ctx, client, "getUpdates", map[string]int{"offset": offset, "timeout": 30}, &updates); err != nil {
		return offset, err
	}

	for _, update := range updates {
		offset = update.UpdateID + 1
		if update.Message == nil || update.Message.Text == "" {
			continue
		}
		text := strings.TrimSpace(update.Message.Text)
		t.log.Info().Str("command", text).Msg("received command")
		if reply := handler(text); reply != "" {
			if err := t.send(ctx, reply); err != nil {
				t.log.Error().Err(err).Msg("send reply")
			}
		}
	}
	return offset, nil
}
