// Package whatsapp talks to the Twilio WhatsApp transport: outbound sends
// plus the TwiML rendering used on webhook responses.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dataX-ai/fitness-pal/internal/domain"
)

const defaultAPIBase = "https://api.twilio.com/2010-04-01"

// MessageRecorder stores outbound messages before they leave the system, so
// the message history stays complete even when Twilio rejects the send.
type MessageRecorder interface {
	CreateRawMessage(ctx context.Context, userID, body string, incoming bool) (domain.RawMessage, error)
}

// Config holds Twilio credentials and the sending number.
type Config struct {
	AccountSID string
	AuthToken  string
	Sender     string // e.g. "whatsapp:+14155238886"
	APIBase    string // overridable for tests
}

// Client sends WhatsApp messages through Twilio's REST API.
type Client struct {
	cfg      Config
	recorder MessageRecorder
	http     *http.Client
	logger   *log.Logger
}

// NewClient constructs a Client.
func NewClient(cfg Config, recorder MessageRecorder) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	return &Client{
		cfg:      cfg,
		recorder: recorder,
		http:     &http.Client{Timeout: 15 * time.Second},
		logger:   log.New(log.Writer(), "[whatsapp] ", log.LstdFlags|log.Lshortfile),
	}
}

// SendText sends a plain text message to the user.
func (c *Client) SendText(ctx context.Context, user domain.User, body string) error {
	if _, err := c.recorder.CreateRawMessage(ctx, user.ID, body, false); err != nil {
		return err
	}
	return c.post(ctx, url.Values{
		"To":   {whatsappAddress(user.PhoneNumber)},
		"From": {c.cfg.Sender},
		"Body": {body},
	})
}

// SendTemplate sends a pre-approved template message with variables.
func (c *Client) SendTemplate(ctx context.Context, user domain.User, contentSID string, variables map[string]string) error {
	if _, err := c.recorder.CreateRawMessage(ctx, user.ID, "template:"+contentSID, false); err != nil {
		return err
	}

	form := url.Values{
		"To":         {whatsappAddress(user.PhoneNumber)},
		"From":       {c.cfg.Sender},
		"ContentSid": {contentSID},
	}
	if len(variables) > 0 {
		encoded, err := json.Marshal(variables)
		if err != nil {
			return err
		}
		form.Set("ContentVariables", string(encoded))
	}
	return c.post(ctx, form)
}

func (c *Client) post(ctx context.Context, form url.Values) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.cfg.APIBase, c.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.logger.Printf("twilio send failed: status=%d body=%s", resp.StatusCode, payload)
		return fmt.Errorf("twilio send failed with status %d", resp.StatusCode)
	}
	return nil
}

// whatsappAddress ensures the Twilio channel prefix is present exactly once.
func whatsappAddress(phone string) string {
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	return "whatsapp:" + phone
}
