package settings

import "time"

// Well-known workspace config keys.
const (
	KeyWebhookURL = "webhook_url"
	KeySiteID     = "sharepoint_site_id"
	KeyDriveID    = "sharepoint_drive_id"
)

// encryptedKeys lists config values stored encrypted at rest and masked on
// read.
var encryptedKeys = map[string]bool{
	KeyWebhookURL: true,
}

func IsEncryptedKey(key string) bool {
	return encryptedKeys[key]
}

type Entry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Encrypted bool      `json:"encrypted"`
	UpdatedAt time.Time `json:"updatedAt"`
}
