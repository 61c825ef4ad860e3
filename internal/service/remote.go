package service

import (
	"context"

	"teamgate/internal/chatgpt"
	"teamgate/internal/model"
)

// RemoteClient is the slice of the membership backend the services depend
// on, satisfied by *chatgpt.Client and mocked in tests.
type RemoteClient interface {
	ListMembers(ctx context.Context, cred chatgpt.Credential) ([]chatgpt.Member, error)
	ListPendingInvites(ctx context.Context, cred chatgpt.Credential) ([]chatgpt.PendingInvite, error)
	InviteMember(ctx context.Context, cred chatgpt.Credential, email string) (string, error)
	RemoveMember(ctx context.Context, cred chatgpt.Credential, userID string) error
}

func credentialFor(team model.Team) chatgpt.Credential {
	return chatgpt.Credential{AccessToken: team.AccessToken, AccountID: team.AccountID}
}
