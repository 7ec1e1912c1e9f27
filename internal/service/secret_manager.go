package service

import (
	"context"
	"encoding/json"
	"fmt"

	"app/internal/config"
	"app/internal/model"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CredentialStore holds per-user OAuth token pairs for external
// providers. Credentials are created at account-link time and re-created
// on re-authentication; the sync engine never deletes them on failure,
// it disables the feature instead.
type CredentialStore interface {
	StoreCredentials(ctx context.Context, userID, provider string, creds *model.Credentials) error
	GetCredentials(ctx context.Context, userID, provider string) (*model.Credentials, error)
	DeleteCredentials(ctx context.Context, userID, provider string) error
}

type secretManagerStore struct {
	client    *secretmanager.Client
	projectID string
}

func NewSecretManagerStore(ctx context.Context, cfg *config.Config) (CredentialStore, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP Project ID is not set for the current environment")
	}

	var opts []option.ClientOption
	// Note: Secret Manager requires a real GCP project even for local development.

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	return &secretManagerStore{
		client:    client,
		projectID: cfg.GCPProjectID,
	}, nil
}

func (s *secretManagerStore) secretName(userID, provider string) string {
	return fmt.Sprintf("user-%s-%s-oauth", userID, provider)
}

func (s *secretManagerStore) StoreCredentials(ctx context.Context, userID, provider string, creds *model.Credentials) error {
	secretName := s.secretName(userID, provider)
	secretPath := fmt.Sprintf("projects/%s/secrets/%s", s.projectID, secretName)

	secretExists := true
	_, err := s.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{
		Name: secretPath,
	})
	if err != nil {
		secretExists = false
	}

	if !secretExists {
		createReq := &secretmanagerpb.CreateSecretRequest{
			Parent:   fmt.Sprintf("projects/%s", s.projectID),
			SecretId: secretName,
			Secret: &secretmanagerpb.Secret{
				Replication: &secretmanagerpb.Replication{
					Replication: &secretmanagerpb.Replication_Automatic_{
						Automatic: &secretmanagerpb.Replication_Automatic{},
					},
				},
			},
		}
		if _, err := s.client.CreateSecret(ctx, createReq); err != nil {
			return fmt.Errorf("failed to create secret: %w", err)
		}
	}

	payload, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	addVersionReq := &secretmanagerpb.AddSecretVersionRequest{
		Parent: secretPath,
		Payload: &secretmanagerpb.SecretPayload{
			Data: payload,
		},
	}
	if _, err := s.client.AddSecretVersion(ctx, addVersionReq); err != nil {
		return fmt.Errorf("failed to add secret version: %w", err)
	}

	return nil
}

// GetCredentials returns (nil, nil) when the user has no stored
// credentials: a missing record is a terminal no-op for a sync, not an
// error.
func (s *secretManagerStore) GetCredentials(ctx context.Context, userID, provider string) (*model.Credentials, error) {
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, s.secretName(userID, provider))

	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: resourceName,
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to access secret version: %w", err)
	}

	var creds model.Credentials
	if err := json.Unmarshal(result.Payload.Data, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return &creds, nil
}

func (s *secretManagerStore) DeleteCredentials(ctx context.Context, userID, provider string) error {
	secretPath := fmt.Sprintf("projects/%s/secrets/%s", s.projectID, s.secretName(userID, provider))

	err := s.client.DeleteSecret(ctx, &secretmanagerpb.DeleteSecretRequest{
		Name: secretPath,
	})
	if err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}
