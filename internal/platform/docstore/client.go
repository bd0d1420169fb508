package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a thin wrapper over the external document-management API. It
// creates folders, opens upload sessions, and deletes files; the actual byte
// transfer happens client side against the returned upload URL.
type Client struct {
	BaseURL     string
	TokenSource TokenSource
	HTTP        *http.Client
}

// TokenSource supplies an app-only access token for the document store.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

func New(baseURL string, tokens TokenSource) *Client {
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		TokenSource: tokens,
		HTTP:        &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.TokenSource != nil
}

type UploadSession struct {
	UploadURL string `json:"uploadUrl"`
	ItemPath  string `json:"itemPath"`
}

// FolderPath derives the deterministic evidence folder for a task:
// BaseFolder/Entity/Year/Month/ComplianceId. Path segments are sanitized so
// entity names cannot escape the base folder.
func FolderPath(baseFolder, entityName, complianceID string, when time.Time) string {
	segments := []string{
		sanitizeSegment(baseFolder),
		sanitizeSegment(entityName),
		when.Format("2006"),
		when.Format("01"),
		sanitizeSegment(complianceID),
	}
	return strings.Join(segments, "/")
}

func sanitizeSegment(segment string) string {
	cleaned := strings.TrimSpace(segment)
	replacer := strings.NewReplacer("/", "-", "\\", "-", "..", "-", ":", "-", "*", "-", "?", "-", "\"", "-", "<", "-", ">", "-", "|", "-", "#", "-", "%", "-")
	cleaned = replacer.Replace(cleaned)
	if cleaned == "" {
		return "unknown"
	}
	return cleaned
}

// CreateUploadSession ensures the folder path and opens an upload session for
// fileName inside it.
func (c *Client) CreateUploadSession(ctx context.Context, siteID, driveID, folderPath, fileName string) (UploadSession, error) {
	if !c.Configured() {
		return UploadSession{}, fmt.Errorf("document store not configured")
	}

	itemPath := folderPath + "/" + sanitizeSegment(fileName)
	endpoint := fmt.Sprintf("%s/sites/%s/drives/%s/root:/%s:/createUploadSession",
		c.BaseURL, url.PathEscape(siteID), url.PathEscape(driveID), escapePath(itemPath))

	body, err := json.Marshal(map[string]any{
		"item": map[string]any{"@microsoft.graph.conflictBehavior": "rename"},
	})
	if err != nil {
		return UploadSession{}, err
	}

	var out struct {
		UploadURL string `json:"uploadUrl"`
	}
	if err := c.do(ctx, http.MethodPost, endpoint, body, &out); err != nil {
		return UploadSession{}, err
	}
	return UploadSession{UploadURL: out.UploadURL, ItemPath: itemPath}, nil
}

// DeleteItem removes a file from the external store. Callers treat failures
// as best-effort cleanup.
func (c *Client) DeleteItem(ctx context.Context, siteID, driveID, itemID string) error {
	if !c.Configured() {
		return fmt.Errorf("document store not configured")
	}
	endpoint := fmt.Sprintf("%s/sites/%s/drives/%s/items/%s",
		c.BaseURL, url.PathEscape(siteID), url.PathEscape(driveID), url.PathEscape(itemID))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

type ItemMetadata struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	WebURL   string `json:"webUrl"`
	Size     int64  `json:"size"`
	MimeType string
}

// GetItem fetches metadata for an uploaded file.
func (c *Client) GetItem(ctx context.Context, siteID, driveID, itemID string) (ItemMetadata, error) {
	if !c.Configured() {
		return ItemMetadata{}, fmt.Errorf("document store not configured")
	}
	endpoint := fmt.Sprintf("%s/sites/%s/drives/%s/items/%s",
		c.BaseURL, url.PathEscape(siteID), url.PathEscape(driveID), url.PathEscape(itemID))

	var out struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		WebURL string `json:"webUrl"`
		Size   int64  `json:"size"`
		File   struct {
			MimeType string `json:"mimeType"`
		} `json:"file"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return ItemMetadata{}, err
	}
	return ItemMetadata{ID: out.ID, Name: out.Name, WebURL: out.WebURL, Size: out.Size, MimeType: out.File.MimeType}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	token, err := c.TokenSource.Token(ctx)
	if err != nil {
		return err
	}

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("document store request failed with status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
