package evidence

import "time"

type File struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"taskId"`
	UploadedBy string    `json:"uploadedBy"`
	ItemID     string    `json:"itemId"`
	WebURL     string    `json:"webUrl"`
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"sizeBytes"`
	MimeType   string    `json:"mimeType"`
	Path       string    `json:"path"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UploadTicket is handed to the client so it can push file bytes straight to
// the external store.
type UploadTicket struct {
	UploadURL string `json:"uploadUrl"`
	ItemPath  string `json:"itemPath"`
}
