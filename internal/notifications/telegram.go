package notifications

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jpillora/backoff"
)

const (
	telegramAPI = "https://api.telegram.org"

	// Telegram rejects messages longer than this many characters.
	maxMessageLen = 4096
	maxAttempts   = 3
)

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// TelegramNotifier posts alerts to one chat through the Bot API.
type TelegramNotifier struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
	retry   backoff.Backoff
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		apiBase: telegramAPI,
		client:  &http.Client{Timeout: 10 * time.Second},
		retry:   backoff.Backoff{Min: 500 * time.Millisecond, Max: 5 * time.Second, Factor: 2},
	}
}

func levelEmoji(level string) string {
	switch level {
	case "warning":
		return "⚠️"
	case "error":
		return "🚨"
	case "success":
		return "✅"
	default:
		return "ℹ️"
	}
}

func formatAlert(level, message string) string {
	text := fmt.Sprintf("%s *Confluence Bot Alert*\n\n%s", levelEmoji(level), markdownEscaper.Replace(message))
	if r := []rune(text); len(r) > maxMessageLen {
		text = string(r[:maxMessageLen-1]) + "…"
	}
	return text
}

// SendAlert delivers the message, retrying throttled and server side failures.
func (t *TelegramNotifier) SendAlert(level, message string) error {
	data := url.Values{}
	data.Set("chat_id", t.chatID)
	data.Set("text", formatAlert(level, message))
	data.Set("parse_mode", "Markdown")
	body := data.Encode()

	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	retry := t.retry
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, err := t.post(apiURL, body)
		switch {
		case err == nil && status == http.StatusOK:
			return nil
		case err != nil:
			lastErr = err
		default:
			lastErr = fmt.Errorf("telegram API returned status %d", status)
			if status != http.StatusTooManyRequests && status < http.StatusInternalServerError {
				return lastErr
			}
		}
		if attempt < maxAttempts {
			time.Sleep(retry.Duration())
		}
	}
	return lastErr
}

func (t *TelegramNotifier) post(apiURL, body string) (int, error) {
	resp, err := t.client.Post(apiURL, "application/x-www-form-urlencoded", strings.NewReader(body))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
