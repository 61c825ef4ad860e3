package chatgpt

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

const (
	// RoleAccountOwner is never a removal candidate.
	RoleAccountOwner = "account-owner"
	// RoleStandardUser is the role assigned to invited members.
	RoleStandardUser = "standard-user"
)

// Credential identifies one team subscription on the remote backend.
type Credential struct {
	AccessToken string
	AccountID   string
}

// Member is a parsed entry from the remote membership listing.
type Member struct {
	ID    string
	Email string
	Role  string
}

// IsOwner reports whether the member holds the owner role.
func (m Member) IsOwner() bool { return m.Role == RoleAccountOwner }

// PendingInvite is a parsed entry from the remote invite listing.
type PendingInvite struct {
	ID    string
	Email string
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClients overrides the HTTP clients used for list and write calls.
func WithHTTPClients(list, write *http.Client) Option {
	return func(c *Client) {
		c.listClient = list
		c.writeClient = write
	}
}

// Client issues membership operations against the remote backend. It carries
// no retry logic; retry policy belongs to the callers.
type Client struct {
	baseURL     string
	listClient  *http.Client
	writeClient *http.Client
}

// NewClient creates a client for the given API base URL. Listing calls use
// the short timeout; invite and remove calls the longer one.
func NewClient(baseURL string, listTimeout, writeTimeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		listClient:  &http.Client{Timeout: listTimeout},
		writeClient: &http.Client{Timeout: writeTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListMembers returns the current membership of the account, owner included.
func (c *Client) ListMembers(ctx context.Context, cred Credential) ([]Member, error) {
	body, err := c.do(ctx, c.listClient, http.MethodGet, fmt.Sprintf("/accounts/%s/users", cred.AccountID), cred, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		AccountUsers []struct {
			ID     string `json:"id"`
			UserID string `json:"user_id"`
			Email  string `json:"email"`
			Role   string `json:"role"`
		} `json:"account_users"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &RemoteError{Kind: KindUnknown, Message: fmt.Sprintf("malformed member list: %v", err)}
	}

	members := make([]Member, 0, len(payload.AccountUsers))
	for _, u := range payload.AccountUsers {
		// Some responses carry the user id under "user_id", others under "id".
		id := u.UserID
		if id == "" {
			id = u.ID
		}
		members = append(members, Member{ID: id, Email: u.Email, Role: u.Role})
	}
	return members, nil
}

// ListPendingInvites returns invites that have been sent but not yet accepted.
func (c *Client) ListPendingInvites(ctx context.Context, cred Credential) ([]PendingInvite, error) {
	body, err := c.do(ctx, c.listClient, http.MethodGet, fmt.Sprintf("/accounts/%s/invites", cred.AccountID), cred, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		AccountInvites []struct {
			ID           string `json:"id"`
			EmailAddress string `json:"email_address"`
		} `json:"account_invites"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &RemoteError{Kind: KindUnknown, Message: fmt.Sprintf("malformed invite list: %v", err)}
	}

	invites := make([]PendingInvite, 0, len(payload.AccountInvites))
	for _, inv := range payload.AccountInvites {
		invites = append(invites, PendingInvite{ID: inv.ID, Email: inv.EmailAddress})
	}
	return invites, nil
}

// InviteMember sends a membership invite and returns the remote invite id,
// which may be empty when the response omits it.
func (c *Client) InviteMember(ctx context.Context, cred Credential, email string) (string, error) {
	payload := map[string]any{
		"email_addresses": []string{email},
		"role":            RoleStandardUser,
		"resend_emails":   false,
	}
	body, err := c.do(ctx, c.writeClient, http.MethodPost, fmt.Sprintf("/accounts/%s/invites", cred.AccountID), cred, payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		AccountInvites []struct {
			ID string `json:"id"`
		} `json:"account_invites"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.AccountInvites) == 0 {
		return "", nil
	}
	return resp.AccountInvites[0].ID, nil
}

// RemoveMember expels a member from the account.
func (c *Client) RemoveMember(ctx context.Context, cred Credential, userID string) error {
	_, err := c.do(ctx, c.writeClient, http.MethodDelete, fmt.Sprintf("/accounts/%s/users/%s", cred.AccountID, userID), cred, nil)
	return err
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, cred Credential, payload any) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, &RemoteError{Kind: KindUnknown, Message: fmt.Sprintf("failed to marshal request: %v", err)}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &RemoteError{Kind: KindUnknown, Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	c.setHeaders(req, cred)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &RemoteError{Kind: KindUnknown, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Kind: KindUnknown, Message: fmt.Sprintf("failed to read response: %v", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return json.RawMessage(respBody), nil
	}

	msg := strings.TrimSpace(string(respBody))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return nil, &RemoteError{
		Kind:       kindForStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Message:    msg,
	}
}

// setHeaders applies the browser fingerprint the remote backend expects from
// an admin console session.
func (c *Client) setHeaders(req *http.Request, cred Credential) {
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Chatgpt-Account-Id", cred.AccountID)
	req.Header.Set("Oai-Device-Id", "a9c9e9a0-f72d-4fbc-800e-2d0e1e3c3b54")
	req.Header.Set("Oai-Language", "zh-CN")
	req.Header.Set("Origin", "https://chatgpt.com")
	req.Header.Set("Referer", "https://chatgpt.com/admin")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
}
