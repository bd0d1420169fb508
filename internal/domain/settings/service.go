package settings

import (
	"context"
	"errors"
	"fmt"

	"comply/internal/platform/crypto"
	"comply/internal/platform/webhook"
)

// maskedValue is what encrypted entries render as on read. The plaintext
// never leaves the service except for internal consumers (digest sender,
// webhook test).
const maskedValue = "********"

type Service struct {
	Store   *Store
	Crypto  *crypto.Service
	Webhook *webhook.Client
}

func NewService(store *Store, cryptoSvc *crypto.Service, hook *webhook.Client) *Service {
	return &Service{Store: store, Crypto: cryptoSvc, Webhook: hook}
}

// List returns all config entries for a workspace with encrypted values
// masked.
func (s *Service) List(ctx context.Context, workspaceID string) ([]Entry, error) {
	records, err := s.Store.list(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		entry := Entry{Key: rec.Key, Encrypted: rec.Encrypted, UpdatedAt: rec.UpdatedAt}
		if rec.Encrypted {
			entry.Value = maskedValue
		} else if rec.Value != nil {
			entry.Value = *rec.Value
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Set stores a config value, encrypting it when the key is marked sensitive.
func (s *Service) Set(ctx context.Context, workspaceID, key, value string) error {
	if IsEncryptedKey(key) {
		ciphertext, err := s.Crypto.EncryptString(value)
		if err != nil {
			return fmt.Errorf("encrypt config %s: %w", key, err)
		}
		return s.Store.setEncrypted(ctx, workspaceID, key, ciphertext)
	}
	return s.Store.setPlain(ctx, workspaceID, key, value)
}

func (s *Service) Delete(ctx context.Context, workspaceID, key string) error {
	return s.Store.delete(ctx, workspaceID, key)
}

// Plaintext resolves a config value for internal use, decrypting when needed.
// Missing keys resolve to the empty string.
func (s *Service) Plaintext(ctx context.Context, workspaceID, key string) (string, error) {
	rec, err := s.Store.get(ctx, workspaceID, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if rec.Encrypted {
		return s.Crypto.DecryptString(rec.ValueEnc)
	}
	if rec.Value == nil {
		return "", nil
	}
	return *rec.Value, nil
}

// WebhookURL resolves the workspace's decrypted webhook URL, empty when not
// configured.
func (s *Service) WebhookURL(ctx context.Context, workspaceID string) (string, error) {
	return s.Plaintext(ctx, workspaceID, KeyWebhookURL)
}

// DriveLocation resolves the external document store site and drive for a
// workspace.
func (s *Service) DriveLocation(ctx context.Context, workspaceID string) (string, string, error) {
	siteID, err := s.Plaintext(ctx, workspaceID, KeySiteID)
	if err != nil {
		return "", "", err
	}
	driveID, err := s.Plaintext(ctx, workspaceID, KeyDriveID)
	if err != nil {
		return "", "", err
	}
	return siteID, driveID, nil
}

// TestWebhook posts a throwaway card to the configured webhook so admins can
// verify connectivity without waiting for the weekly digest.
func (s *Service) TestWebhook(ctx context.Context, workspaceID string) error {
	url, err := s.WebhookURL(ctx, workspaceID)
	if err != nil {
		return err
	}
	if url == "" {
		return errors.New("webhook url is not configured")
	}
	return s.Webhook.Post(ctx, url, webhook.Card{
		Title: "Webhook test",
		Text:  "If you can read this, the compliance tracker can reach your channel.",
	})
}
