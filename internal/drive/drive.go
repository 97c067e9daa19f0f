// Package drive searches and reads Google Drive files for the agent.
package drive

import (
	"context"
	"fmt"
	"io"
	"strings"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	maxReadBytes   = 64 << 10
)

// File is a search hit.
type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
}

// Client wraps the Drive v3 service.
type Client struct {
	service *gdrive.Service
}

// NewClient builds a client from a service-account/credentials file or an
// API key; extra options (endpoint, http client) are appended.
func NewClient(ctx context.Context, credentialsFile, apiKey string, opts ...option.ClientOption) (*Client, error) {
	var base []option.ClientOption
	switch {
	case credentialsFile != "":
		base = append(base, option.WithCredentialsFile(credentialsFile))
	case apiKey != "":
		base = append(base, option.WithAPIKey(apiKey))
	}
	if len(base) == 0 && len(opts) == 0 {
		return nil, fmt.Errorf("drive: credentials file or API key is required")
	}

	svc, err := gdrive.NewService(ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("drive: create service: %w", err)
	}
	return &Client{service: svc}, nil
}

// Search runs a Drive query such as "name contains 'report'" or
// "fullText contains 'budget'". Folders are excluded.
func (c *Client) Search(ctx context.Context, query string) ([]File, error) {
	q := fmt.Sprintf("mimeType!='%s'", folderMimeType)
	if query = strings.TrimSpace(query); query != "" {
		q += " and (" + query + ")"
	}

	resp, err := c.service.Files.List().
		Q(q).
		Spaces("drive").
		Fields("files(id, name, mimeType)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("drive search: %w", err)
	}

	files := make([]File, 0, len(resp.Files))
	for _, f := range resp.Files {
		files = append(files, File{ID: f.Id, Name: f.Name, MimeType: f.MimeType})
	}
	return files, nil
}

// Read exports a Google Docs file as plain text. Long documents are
// truncated.
func (c *Client) Read(ctx context.Context, fileID string) (string, error) {
	if fileID == "" {
		return "", fmt.Errorf("drive read: file id is required")
	}
	resp, err := c.service.Files.Export(fileID, "text/plain").Context(ctx).Download()
	if err != nil {
		return "", fmt.Errorf("drive export %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes+1))
	if err != nil {
		return "", fmt.Errorf("drive read %s: %w", fileID, err)
	}
	text := string(b)
	if len(b) > maxReadBytes {
		text = string(b[:maxReadBytes]) + "\n[truncated]"
	}
	return text, nil
}
