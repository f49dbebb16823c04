package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/bsecurity/rosterwatch/internal/utils"
)

const (
	clickSendEndpoint = "https://rest.clicksend.com/v3/sms/send"

	// senderID is the alphanumeric source the recipients see.
	senderID = "DP WORLD"
)

// Notifier delivers one message to an ordered list of phone numbers.
// Delivery is best-effort: callers log a returned error but never abort on it.
type Notifier interface {
	Send(ctx context.Context, message string, recipients []string) error
}

// ClickSend sends SMS through the ClickSend REST v3 API.
type ClickSend struct {
	username string
	password string
	endpoint string
	client   *retryablehttp.Client
}

func NewClickSend(username, password string) *ClickSend {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = stdlog.New(io.Discard, "", 0)
	retryClient.RetryMax = 2

	return &ClickSend{
		username: username,
		password: password,
		endpoint: clickSendEndpoint,
		client:   retryClient,
	}
}

type smsMessage struct {
	Source string `json:"source"`
	From   string `json:"from"`
	Body   string `json:"body"`
	To     string `json:"to"`
}

type smsCollection struct {
	Messages []smsMessage `json:"messages"`
}

func buildCollection(message string, recipients []string) smsCollection {
	var col smsCollection
	for _, to := range recipients {
		col.Messages = append(col.Messages, smsMessage{
			Source: "rosterwatch",
			From:   senderID,
			Body:   message,
			To:     to,
		})
	}
	return col
}

func (c *ClickSend) Send(ctx context.Context, message string, recipients []string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("clicksend: no recipients")
	}

	utils.Log.Infof("Sending SMS to %d recipient(s)", len(recipients))

	payload, err := json.Marshal(buildCollection(message, recipients))
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("clicksend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("clicksend: reading response: %w", err)
	}

	if code := gjson.GetBytes(body, "response_code").String(); code != "SUCCESS" {
		return fmt.Errorf("clicksend: send failed: status %d, response_code %q", resp.StatusCode, code)
	}

	utils.Log.Debugf("SMS accepted: %s", gjson.GetBytes(body, "response_msg").String())
	return nil
}
