package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const telegramBaseURL = "https://api.telegram.org"

// TelegramPusher sends notifications through the Telegram Bot API.
type TelegramPusher struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewTelegramPusher creates a pusher for the given bot token.
func NewTelegramPusher(token string) *TelegramPusher {
	return &TelegramPusher{
		token:   token,
		baseURL: telegramBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Send posts one message to the chat identified by to.
func (p *TelegramPusher) Send(to, subject, body string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", p.baseURL, p.token)

	payload, err := json.Marshal(sendMessageRequest{
		ChatID: to,
		Text:   subject + "\n\n" + body,
	})
	if err != nil {
		return fmt.Errorf("marshaling telegram request: %w", err)
	}

	resp, err := p.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API error: %s", resp.Status)
	}
	return nil
}
