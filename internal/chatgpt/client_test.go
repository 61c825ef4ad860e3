package chatgpt_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamgate/internal/chatgpt"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *chatgpt.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return chatgpt.NewClient(server.URL, time.Second, time.Second)
}

var cred = chatgpt.Credential{AccessToken: "tok", AccountID: "acct-1"}

func TestClient_ListMembers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acct-1/users", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "acct-1", r.Header.Get("Chatgpt-Account-Id"))

		json.NewEncoder(w).Encode(map[string]any{
			"account_users": []map[string]any{
				{"user_id": "u1", "email": "owner@example.com", "role": "account-owner"},
				{"id": "u2", "email": "member@example.com", "role": "standard-user"},
			},
		})
	})

	members, err := client.ListMembers(context.Background(), cred)
	require.NoError(t, err)
	require.Len(t, members, 2)

	assert.Equal(t, "u1", members[0].ID)
	assert.True(t, members[0].IsOwner())
	// Falls back to "id" when "user_id" is absent.
	assert.Equal(t, "u2", members[1].ID)
	assert.False(t, members[1].IsOwner())
}

func TestClient_ListPendingInvites(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acct-1/invites", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"account_invites": []map[string]any{
				{"id": "inv-1", "email_address": "pending@example.com"},
			},
		})
	})

	invites, err := client.ListPendingInvites(context.Background(), cred)
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, "inv-1", invites[0].ID)
	assert.Equal(t, "pending@example.com", invites[0].Email)
}

func TestClient_InviteMember(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/accounts/acct-1/invites", r.URL.Path)

		var payload struct {
			EmailAddresses []string `json:"email_addresses"`
			Role           string   `json:"role"`
			ResendEmails   bool     `json:"resend_emails"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, []string{"new@example.com"}, payload.EmailAddresses)
		assert.Equal(t, chatgpt.RoleStandardUser, payload.Role)
		assert.False(t, payload.ResendEmails)

		json.NewEncoder(w).Encode(map[string]any{
			"account_invites": []map[string]any{{"id": "inv-42"}},
		})
	})

	id, err := client.InviteMember(context.Background(), cred, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, "inv-42", id)
}

func TestClient_InviteMember_MissingIDTolerated(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	id, err := client.InviteMember(context.Background(), cred, "new@example.com")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestClient_RemoveMember(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodDelete, r.Method)
		w.Write([]byte(`{}`))
	})

	err := client.RemoveMember(context.Background(), cred, "u-9")
	require.NoError(t, err)
	assert.Equal(t, "/accounts/acct-1/users/u-9", gotPath)
}

func TestClient_StatusTranslation(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		expectedKind chatgpt.ErrorKind
		authFailure  bool
		rateLimited  bool
	}{
		{name: "unauthorized", status: 401, expectedKind: chatgpt.KindUnauthorized, authFailure: true},
		{name: "forbidden", status: 403, expectedKind: chatgpt.KindForbidden, authFailure: true},
		{name: "not_found", status: 404, expectedKind: chatgpt.KindNotFound},
		{name: "rate_limited", status: 429, expectedKind: chatgpt.KindRateLimited, rateLimited: true},
		{name: "server_error", status: 500, expectedKind: chatgpt.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			})

			_, err := client.ListMembers(context.Background(), cred)
			require.Error(t, err)

			var rerr *chatgpt.RemoteError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.expectedKind, rerr.Kind)
			assert.Equal(t, tt.status, rerr.StatusCode)
			assert.Equal(t, tt.authFailure, chatgpt.IsAuthFailure(err))
			assert.Equal(t, tt.rateLimited, chatgpt.IsRateLimited(err))
		})
	}
}

func TestClient_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := client.ListMembers(context.Background(), cred)
	require.Error(t, err)

	var rerr *chatgpt.RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, chatgpt.KindUnknown, rerr.Kind)
}
