package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// whatsAppMaxBody is Twilio's message body limit.
const whatsAppMaxBody = 1600

// TwilioConfig holds the Twilio WhatsApp sender settings.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string // whatsapp:+14155238886
	To         string // whatsapp:+8613800000000
	BaseURL    string
	Timeout    time.Duration
}

// WhatsAppChannel sends the text reminder through Twilio's Messages API.
type WhatsAppChannel struct {
	cfg    TwilioConfig
	client *http.Client
}

// NewWhatsAppChannel returns a WhatsApp channel.
func NewWhatsAppChannel(cfg TwilioConfig) *WhatsAppChannel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &WhatsAppChannel{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Name implements Channel.
func (c *WhatsAppChannel) Name() string { return ChannelWhatsApp }

// Enabled implements Channel.
func (c *WhatsAppChannel) Enabled() bool {
	return c.cfg.AccountSID != "" && c.cfg.AuthToken != "" && c.cfg.From != "" && c.cfg.To != ""
}

type twilioResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send implements Channel.
func (c *WhatsAppChannel) Send(ctx context.Context, msg Message) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}

	body := msg.Text
	if r := []rune(body); len(r) > whatsAppMaxBody {
		body = string(r[:whatsAppMaxBody-1]) + "…"
	}
	form := url.Values{}
	form.Set("From", withPrefix(c.cfg.From))
	form.Set("To", withPrefix(c.cfg.To))
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("notify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: twilio request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("notify: read twilio response: %w", err)
	}
	var tr twilioResponse
	_ = json.Unmarshal(raw, &tr)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: twilio status %d (code %d): %s", resp.StatusCode, tr.Code, tr.Message)
	}
	return nil
}

func withPrefix(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
