package uplink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andresvelez/shortreel-backend/internal/publishing"
	"github.com/andresvelez/shortreel-backend/pkg/db/models"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
)

const responseReadLimit int64 = 1024

// RelayClient talks to a platform upload relay: a service holding the real
// platform credentials that accepts the rendered video plus metadata and
// returns the remote id. One client serves one platform endpoint; it
// implements both the uploader and the engagement fetcher.
type RelayClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*RelayClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *RelayClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithAPIKey sets the bearer token sent to the relay.
func WithAPIKey(key string) Option {
	return func(c *RelayClient) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// NewRelayClient builds a client for one platform endpoint.
func NewRelayClient(baseURL string, opts ...Option) (*RelayClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "relay base url is required")
	}
	client := &RelayClient{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type uploadMetadata struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Tags        string  `json:"tags"`
	Duration    float64 `json:"duration"`
}

// Upload streams the rendered video and its metadata to the relay.
func (c *RelayClient) Upload(ctx context.Context, pub models.PlatformPublication, content models.ProcessedContent) (publishing.UploadResult, error) {
	if content.FinalPath == "" {
		return publishing.UploadResult{}, pkgerrors.New(pkgerrors.CodeValidation, "content has no final artifact")
	}
	video, err := os.Open(content.FinalPath)
	if err != nil {
		return publishing.UploadResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "open final artifact")
	}
	defer func() { _ = video.Close() }()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		defer func() { _ = pw.Close() }()
		meta, err := writer.CreateFormField("metadata")
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if err := json.NewEncoder(meta).Encode(uploadMetadata{
			Title:       pub.Title,
			Description: pub.Description,
			Tags:        pub.Tags,
			Duration:    content.Duration,
		}); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		part, err := writer.CreateFormFile("video", filepath.Base(content.FinalPath))
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, video); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/uploads", pr)
	if err != nil {
		return publishing.UploadResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build upload request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return publishing.UploadResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute upload request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return publishing.UploadResult{}, statusError(resp, "upload request failed")
	}

	var apiResp struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return publishing.UploadResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode upload response")
	}
	if apiResp.ID == "" {
		return publishing.UploadResult{}, pkgerrors.New(pkgerrors.CodeDependency, "relay returned no remote id")
	}
	return publishing.UploadResult{RemoteID: apiResp.ID, RemoteURL: apiResp.URL}, nil
}

// Fetch reads the engagement counters for a published video.
func (c *RelayClient) Fetch(ctx context.Context, remoteID string) (publishing.Engagement, error) {
	if strings.TrimSpace(remoteID) == "" {
		return publishing.Engagement{}, pkgerrors.New(pkgerrors.CodeValidation, "remote id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos/"+remoteID+"/stats", nil)
	if err != nil {
		return publishing.Engagement{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build stats request")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return publishing.Engagement{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute stats request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return publishing.Engagement{}, statusError(resp, "stats request failed")
	}

	var apiResp struct {
		Views    int `json:"views"`
		Likes    int `json:"likes"`
		Shares   int `json:"shares"`
		Comments int `json:"comments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return publishing.Engagement{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode stats response")
	}
	return publishing.Engagement{
		Views:    apiResp.Views,
		Likes:    apiResp.Likes,
		Shares:   apiResp.Shares,
		Comments: apiResp.Comments,
	}, nil
}

func (c *RelayClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// statusError maps relay status codes onto the retry taxonomy: throttling
// and server errors are retryable, everything else is permanent.
func statusError(resp *http.Response, message string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, message)
}
