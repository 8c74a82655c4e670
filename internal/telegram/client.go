package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

const defaultBaseURL = "https://api.telegram.org"

// Update is one inbound event from getUpdates.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is the subset of the Bot API message object the bot consumes.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *Actor `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type Actor struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Chat struct {
	ID int64 `json:"id"`
}

// apiResponse is the Bot API envelope common to every method.
type apiResponse struct {
	Ok          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// Client talks to the Telegram Bot API over plain HTTPS.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(token string, pollTimeout time.Duration) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token required")
	}
	httpClient, err := createCustomHTTPClient(pollTimeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create http client: %w", err)
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    defaultBaseURL,
		token:      token,
	}, nil
}

// NewClientWithBaseURL points the client at a different API host; used by
// tests to target an httptest server.
func NewClientWithBaseURL(token, baseURL string, pollTimeout time.Duration) (*Client, error) {
	c, err := NewClient(token, pollTimeout)
	if err != nil {
		return nil, err
	}
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c, nil
}

func createCustomHTTPClient(pollTimeout time.Duration) (*http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: pollTimeout + 15*time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}

	// The overall timeout must outlast a full long-poll cycle.
	return &http.Client{
		Transport: tr,
		Timeout:   pollTimeout + 30*time.Second,
	}, nil
}

// GetUpdates long-polls for inbound updates past the given offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := url.Values{
		"offset":  {strconv.FormatInt(offset, 10)},
		"timeout": {strconv.FormatInt(int64(timeout.Seconds()), 10)},
	}

	var updates []Update
	if err := c.makeRequest(ctx, "getUpdates", params, &updates); err != nil {
		return nil, fmt.Errorf("getUpdates failed: %w", err)
	}
	return updates, nil
}

// SendMessage delivers a plain-text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	params := url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
		"text":    {text},
	}

	var ignored json.RawMessage
	if err := c.makeRequest(ctx, "sendMessage", params, &ignored); err != nil {
		return fmt.Errorf("sendMessage to chat %d failed: %w", chatID, err)
	}
	return nil
}

func (c *Client) makeRequest(ctx context.Context, method string, params url.Values, result interface{}) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("unable to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("unable to send request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zap.L().Warn("Failed to close response body", zap.Error(err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unable to read response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("unable to parse response: %w", err)
	}
	if !envelope.Ok {
		return fmt.Errorf("telegram API error: %s", envelope.Description)
	}
	if len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("unable to parse result: %w", err)
		}
	}
	return nil
}
