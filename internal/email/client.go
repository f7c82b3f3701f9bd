package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client sends transactional email through the Resend HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	fromName   string
	fromAddr   string
}

func NewClient(baseURL, apiKey, fromName, fromAddr string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		fromName:   fromName,
		fromAddr:   fromAddr,
	}
}

// APIError is a definitive rejection from the email API: the request was
// delivered to the provider and refused. Transport-level failures are
// returned as plain errors and must be treated as ambiguous — the message
// may or may not have been sent.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("email API: status %d: %s", e.StatusCode, e.Body)
}

// InvitationParams describes one invitation email.
type InvitationParams struct {
	To           string
	Role         string
	BusinessName string
	InviteLink   string
	ExpiresAt    time.Time
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

// SendInvitation delivers the team-invitation email with the acceptance link.
func (c *Client) SendInvitation(ctx context.Context, params InvitationParams) error {
	body, err := json.Marshal(sendRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromAddr),
		To:      []string{params.To},
		Subject: fmt.Sprintf("You've been invited to join %s on SiteHelper", params.BusinessName),
		HTML:    invitationHTML(params),
		Text:    invitationText(params),
	})
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}

	url := c.baseURL + "/emails"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send invitation email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

func invitationHTML(p InvitationParams) string {
	expires := p.ExpiresAt.Format("Monday, January 2, 2006")
	role := titleCase(p.Role)
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><body style="font-family: sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">`)
	fmt.Fprintf(&b, `<h1>You're invited!</h1>`)
	fmt.Fprintf(&b, `<p>You've been invited to join <strong>%s</strong> on SiteHelper as an <strong>%s</strong>.</p>`, p.BusinessName, p.Role)
	fmt.Fprintf(&b, `<p><strong>Role:</strong> %s</p>`, role)
	fmt.Fprintf(&b, `<p><a href="%s" style="background: #667eea; color: white; padding: 14px 32px; text-decoration: none; border-radius: 6px;">Accept Invitation</a></p>`, p.InviteLink)
	fmt.Fprintf(&b, `<p>Or copy and paste this link into your browser:<br>%s</p>`, p.InviteLink)
	fmt.Fprintf(&b, `<p><strong>Important:</strong> this invitation expires on %s.</p>`, expires)
	b.WriteString(`<p>If you didn't expect this invitation, you can safely ignore this email.</p>`)
	b.WriteString(`<p style="color: #9ca3af; font-size: 12px;">SiteHelper - AI-Powered Customer Support</p>`)
	b.WriteString(`</body></html>`)
	return b.String()
}

func invitationText(p InvitationParams) string {
	return fmt.Sprintf(`You've been invited to join %s on SiteHelper!

Role: %s

Accept your invitation by visiting this link:
%s

This invitation expires on %s.

If you didn't expect this invitation, you can safely ignore this email.

---
SiteHelper - AI-Powered Customer Support`,
		p.BusinessName, titleCase(p.Role), p.InviteLink, p.ExpiresAt.Format("Monday, January 2, 2006"))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
