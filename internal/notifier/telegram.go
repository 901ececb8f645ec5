package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"SignalSentinel/internal/model"
	"SignalSentinel/internal/retry"
)

const (
	telegramBaseURL = "https://api.telegram.org"
	// captionLimit is the Bot API limit for photo captions.
	captionLimit = 1024
)

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BaseURL  string
	BotToken string
	ChatID   string
	Client   *http.Client

	policy retry.Policy
	logger *zap.Logger
}

// NewTelegramNotifier creates a notifier with optional proxy support.
// Sends are retried per policy.
func NewTelegramNotifier(botToken, chatID, proxyURL string, policy retry.Policy, logger *zap.Logger) *TelegramNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		BaseURL:  telegramBaseURL,
		BotToken: botToken,
		ChatID:   chatID,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		policy: policy.With("telegram", logger),
		logger: logger,
	}
}

func (t *TelegramNotifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.BaseURL, t.BotToken, method)
}

// Notify sends the text, then the image if any. Short texts ride along as
// the photo caption.
func (t *TelegramNotifier) Notify(ctx context.Context, msg Message) error {
	return retry.Run(ctx, t.policy, func(ctx context.Context) error {
		if len(msg.Image) == 0 {
			return t.Send(ctx, msg.Text)
		}
		caption := msg.Text
		if len([]rune(caption)) > captionLimit {
			if err := t.Send(ctx, msg.Text); err != nil {
				return err
			}
			caption = ""
		}
		return t.SendPhoto(ctx, msg.Image, caption)
	})
}

// Send sends a message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	payload := map[string]string{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req, "send message")
}

// SendPhoto uploads a PNG with an optional HTML caption.
func (t *TelegramNotifier) SendPhoto(ctx context.Context, image []byte, caption string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("chat_id", t.ChatID)
	if caption != "" {
		_ = w.WriteField("caption", caption)
		_ = w.WriteField("parse_mode", "HTML")
	}
	part, err := w.CreateFormFile("photo", "chart.png")
	if err != nil {
		return err
	}
	if _, err := part.Write(image); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendPhoto"), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return t.do(req, "send photo")
}

// do executes req. Network errors, 429 and 5xx are transient.
func (t *TelegramNotifier) do(req *http.Request, op string) error {
	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, model.ErrTransient, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("%s: telegram status %d: %w", op, resp.StatusCode, model.ErrTransient)
	}
	return fmt.Errorf("%s: telegram status %d, body: %s: %w", op, resp.StatusCode, string(respBody), model.ErrMalformedInput)
}
