// Package notifier delivers admin notifications via the Telegram Bot API.
//
// The relay sends a short text message to a configured chat whenever a
// garage connects or disconnects, so the household notices a device
// dropping offline without watching a dashboard.
package notifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smartgarage/garage-core/internal/infrastructure/config"
)

// defaultTimeout bounds each sendMessage call when config gives none.
const defaultTimeout = 10 * time.Second

// telegramAPIBase is the Telegram Bot API endpoint prefix.
const telegramAPIBase = "https://api.telegram.org"

// Sentinel errors for notifier operations.
var (
	// ErrDisabled is returned by New when the notifier is disabled in config.
	ErrDisabled = errors.New("notifier: disabled in configuration")

	// ErrSendFailed is returned when Telegram rejects or fails a message.
	ErrSendFailed = errors.New("notifier: send failed")
)

// Telegram sends messages to a fixed chat via the Bot API.
//
// Thread Safety:
//   - Notify is safe for concurrent use; http.Client handles its own pooling.
type Telegram struct {
	botToken string
	chatID   string
	client   *http.Client
	baseURL  string
}

// New creates a Telegram notifier from config.
//
// Returns ErrDisabled when the notifier section is disabled, so callers
// can treat an absent notifier as a normal condition.
func New(cfg config.NotifierConfig) (*Telegram, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Telegram{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: timeout},
		baseURL:  telegramAPIBase,
	}, nil
}

// Notify sends a plain-text message to the configured chat.
//
// Failures are returned to the caller; the broadcaster logs and swallows
// them so a Telegram outage never affects relay operation.
func (t *Telegram) Notify(text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)

	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)

	resp, err := t.client.Post(endpoint, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrSendFailed, resp.StatusCode)
	}

	// Telegram wraps results in {"ok":bool,...}; a 200 with ok=false still
	// means the message was not delivered.
	var body struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: decoding response: %w", ErrSendFailed, err)
	}
	if !body.OK {
		return fmt.Errorf("%w: %s", ErrSendFailed, body.Description)
	}

	return nil
}
