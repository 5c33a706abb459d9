// Package notify abstracts the destination the monitor delivers plain-text
// results to. The core never knows how delivery is rendered.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"repowatch/internal/httpx"
)

// Notifier delivers one plain-text message to an opaque channel handle.
type Notifier interface {
	Notify(ctx context.Context, channelID, text string) error
}

// WebhookNotifier POSTs messages to the bot framework's webhook endpoint
// through the shared executor.
type WebhookNotifier struct {
	exec *httpx.Executor
	url  string
}

func NewWebhookNotifier(exec *httpx.Executor, url string) *WebhookNotifier {
	return &WebhookNotifier{exec: exec, url: url}
}

type webhookPayload struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, channelID, text string) error {
	body, err := json.Marshal(webhookPayload{ChannelID: channelID, Content: text})
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	resp, err := n.exec.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		URL:    n.url,
		Header: header,
		Body:   body,
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("notification delivery returned status %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier writes messages to the process log. It is the fallback when
// no webhook is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, channelID, text string) error {
	n.logger.Info("notification", zap.String("channel_id", channelID), zap.String("content", text))
	return nil
}
