package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crm-platform/internal/mail"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Client talks to the Gmail REST API using per-account OAuth refresh tokens.
// The stored refresh token is exchanged for an access token before each sync
// run; a failed exchange means the user must reconnect the mailbox.

const (
	defaultBaseURL = "https://gmail.googleapis.com/gmail/v1"

	// listPageSize bounds one sync run; the cursor catches the rest next run.
	listPageSize = 50
)

type Client struct {
	oauthCfg *oauth2.Config
	baseURL  string
}

type Option func(*Client)

// WithBaseURL points the client at an alternate API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func NewClient(clientID, clientSecret string, opts ...Option) *Client {
	c := &Client{
		oauthCfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
		},
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mailbox exchanges the refresh token and returns a handle bound to one
// user's mailbox. The upfront exchange surfaces revoked credentials as an
// error here instead of midway through a sync batch.
func (c *Client) Mailbox(ctx context.Context, refreshToken string) (*Mailbox, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("gmail: refresh token not configured")
	}
	ts := c.oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	if _, err := ts.Token(); err != nil {
		return nil, fmt.Errorf("gmail: credential refresh: %w", err)
	}
	return &Mailbox{
		httpClient: oauth2.NewClient(ctx, ts),
		baseURL:    c.baseURL,
	}, nil
}

// Mailbox performs API calls as one authenticated user.
type Mailbox struct {
	httpClient *http.Client
	baseURL    string
}

type listResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// ListMessageIDs returns ids of messages received after the given time.
func (m *Mailbox) ListMessageIDs(ctx context.Context, after time.Time) ([]string, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("after:%d", after.Unix()))
	q.Set("maxResults", fmt.Sprintf("%d", listPageSize))

	var out listResponse
	if err := m.getJSON(ctx, "/users/me/messages?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(out.Messages))
	for _, msg := range out.Messages {
		ids = append(ids, msg.ID)
	}
	return ids, nil
}

// GetMessage fetches one message in full format, including the MIME tree.
func (m *Mailbox) GetMessage(ctx context.Context, id string) (Message, error) {
	var out Message
	if err := m.getJSON(ctx, "/users/me/messages/"+url.PathEscape(id)+"?format=full", &out); err != nil {
		return Message{}, err
	}
	return out, nil
}

func (m *Mailbox) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gmail: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("gmail: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gmail: status %d for %s", resp.StatusCode, path)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("gmail: decode response: %w", err)
	}
	return nil
}

// Message mirrors the Gmail API message resource.
type Message struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Snippet  string `json:"snippet"`
	Payload  *Part  `json:"payload"`
}

// Header returns a payload header value by case-insensitive name.
func (msg Message) Header(name string) string {
	if msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Headers returns all payload headers as a map keyed by original names.
func (msg Message) Headers() map[string]string {
	out := map[string]string{}
	if msg.Payload == nil {
		return out
	}
	for _, h := range msg.Payload.Headers {
		out[h.Name] = h.Value
	}
	return out
}

type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Part is one node of the MIME tree. It satisfies mail.Part so the generic
// body traversal works over API payloads directly.
type Part struct {
	MimeType string   `json:"mimeType"`
	Headers  []Header `json:"headers"`
	Body     PartBody `json:"body"`
	Parts    []*Part  `json:"parts"`
}

type PartBody struct {
	Data string `json:"data"`
	Size int    `json:"size"`
}

func (p *Part) MIMEType() string { return p.MimeType }

// InlineData decodes the base64url body. Gmail omits padding; tolerate both.
func (p *Part) InlineData() ([]byte, bool) {
	if p.Body.Data == "" {
		return nil, false
	}
	raw := strings.TrimRight(p.Body.Data, "=")
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, false
	}
	return decoded, true
}

func (p *Part) Subparts() []mail.Part {
	if len(p.Parts) == 0 {
		return nil
	}
	out := make([]mail.Part, len(p.Parts))
	for i, sub := range p.Parts {
		out[i] = sub
	}
	return out
}
