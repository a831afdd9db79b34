package medialib

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to the media library service over HTTP.
//
// All methods are safe for concurrent use.
type Client struct {
	hc      *http.Client
	baseURL string
	token   string
}

// NewClient returns a Client for the service at baseURL (for example
// "http://localhost:8080"). A nil hc uses http.DefaultClient.
func NewClient(baseURL, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}

	return &Client{
		hc:      hc,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type opts struct {
	method string
	path   string
	query  url.Values
	body   any
}

func (c *Client) call(ctx context.Context, o *opts, result any) error {
	u := c.baseURL + o.path
	if len(o.query) > 0 {
		u += "?" + o.query.Encode()
	}

	var body io.Reader
	if o.body != nil {
		b, err := json.Marshal(o.body)
		if err != nil {
			return fmt.Errorf("failed to encode request body, %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, o.method, u, body)
	if err != nil {
		return fmt.Errorf("failed to prepare request, %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed, %w", o.method, o.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s %s response, %w", o.method, o.path, err)
	}

	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}

	var body ErrorResponse
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Code = body.Code
		apiErr.RequestID = body.RequestID
	}

	if apiErr.Code == "" && resp.StatusCode == http.StatusNotFound {
		apiErr.Code = CodeNotFound
	}

	return apiErr
}

func projectPath(project string, rest ...string) string {
	p := "/api/projects/" + url.PathEscape(project)
	for _, r := range rest {
		p += "/" + r
	}

	return p
}

func lifetimeSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}

	return int(d / time.Second)
}

func (c *Client) ListFiles(ctx context.Context, project string, folderID *string) ([]MediaFile, error) {
	q := url.Values{}
	if folderID != nil {
		q.Set("folder_id", *folderID)
	}

	var files []MediaFile
	err := c.call(ctx, &opts{method: http.MethodGet, path: projectPath(project, "files"), query: q}, &files)
	return files, err
}

func (c *Client) FolderTree(ctx context.Context, project string) ([]*MediaFolder, error) {
	var tree []*MediaFolder
	err := c.call(ctx, &opts{method: http.MethodGet, path: projectPath(project, "folders")}, &tree)
	return tree, err
}

func (c *Client) CreateFolder(ctx context.Context, project string, req FolderRequest) (*MediaFolder, error) {
	var folder MediaFolder
	if err := c.call(ctx, &opts{method: http.MethodPost, path: projectPath(project, "folders"), body: req}, &folder); err != nil {
		return nil, err
	}

	return &folder, nil
}

func (c *Client) RenameFolder(ctx context.Context, project, folderID, name string) (*MediaFolder, error) {
	var folder MediaFolder
	err := c.call(ctx, &opts{
		method: http.MethodPatch,
		path:   projectPath(project, "folders", url.PathEscape(folderID)),
		body:   FolderRequest{Name: name},
	}, &folder)
	if err != nil {
		return nil, err
	}

	return &folder, nil
}

func (c *Client) DeleteFolder(ctx context.Context, project, folderID string, moveToParent bool) error {
	q := url.Values{}
	q.Set("move_to_parent", strconv.FormatBool(moveToParent))

	return c.call(ctx, &opts{
		method: http.MethodDelete,
		path:   projectPath(project, "folders", url.PathEscape(folderID)),
		query:  q,
	}, nil)
}

func (c *Client) RequestUpload(ctx context.Context, project string, req UploadRequest) (*UploadGrant, error) {
	var grant UploadGrant
	if err := c.call(ctx, &opts{method: http.MethodPost, path: projectPath(project, "uploads"), body: req}, &grant); err != nil {
		return nil, err
	}

	return &grant, nil
}

func (c *Client) RegisterUpload(ctx context.Context, project string, req RegisterRequest) (*MediaFile, error) {
	var file MediaFile
	if err := c.call(ctx, &opts{method: http.MethodPost, path: projectPath(project, "files"), body: req}, &file); err != nil {
		return nil, err
	}

	return &file, nil
}

func (c *Client) UpdateFile(ctx context.Context, fileID string, req FileUpdate) (*MediaFile, error) {
	var file MediaFile
	if err := c.call(ctx, &opts{method: http.MethodPatch, path: "/api/files/" + url.PathEscape(fileID), body: req}, &file); err != nil {
		return nil, err
	}

	return &file, nil
}

func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	return c.call(ctx, &opts{method: http.MethodDelete, path: "/api/files/" + url.PathEscape(fileID)}, nil)
}

func (c *Client) ExchangeURL(ctx context.Context, key string, lifetime time.Duration) (*SignedURL, error) {
	var signed SignedURL
	err := c.call(ctx, &opts{
		method: http.MethodPost,
		path:   "/api/storage/urls",
		body:   ExchangeRequest{Key: key, LifetimeSeconds: lifetimeSeconds(lifetime)},
	}, &signed)
	if err != nil {
		return nil, err
	}

	return &signed, nil
}

func (c *Client) ExchangeURLs(ctx context.Context, keys []string, lifetime time.Duration) (map[string]SignedURL, error) {
	var resp BulkExchangeResponse
	err := c.call(ctx, &opts{
		method: http.MethodPost,
		path:   "/api/storage/urls/bulk",
		body:   BulkExchangeRequest{Keys: keys, LifetimeSeconds: lifetimeSeconds(lifetime)},
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.URLs == nil {
		resp.URLs = map[string]SignedURL{}
	}

	return resp.URLs, nil
}

func (c *Client) CloudConnections(ctx context.Context) ([]CloudConnection, error) {
	var conns []CloudConnection
	err := c.call(ctx, &opts{method: http.MethodGet, path: "/api/cloud/connections"}, &conns)
	return conns, err
}

// Connect links a provider account. Credentials are provider specific.
func (c *Client) Connect(ctx context.Context, provider Provider, credentials map[string]string) error {
	return c.call(ctx, &opts{
		method: http.MethodPut,
		path:   "/api/cloud/connections/" + url.PathEscape(string(provider)),
		body:   ConnectRequest{Credentials: credentials},
	}, nil)
}

func (c *Client) Disconnect(ctx context.Context, provider Provider) error {
	return c.call(ctx, &opts{
		method: http.MethodDelete,
		path:   "/api/cloud/connections/" + url.PathEscape(string(provider)),
	}, nil)
}

func (c *Client) ListCloudFiles(ctx context.Context, provider Provider, folderID string) ([]MediaFile, error) {
	q := url.Values{}
	if folderID != "" {
		q.Set("folder_id", folderID)
	}

	var files []MediaFile
	err := c.call(ctx, &opts{
		method: http.MethodGet,
		path:   "/api/cloud/" + url.PathEscape(string(provider)) + "/files",
		query:  q,
	}, &files)
	return files, err
}

func (c *Client) CloudFileURL(ctx context.Context, provider Provider, fileID string) (*SignedURL, error) {
	var signed SignedURL
	err := c.call(ctx, &opts{
		method: http.MethodGet,
		path:   "/api/cloud/" + url.PathEscape(string(provider)) + "/files/" + url.PathEscape(fileID) + "/url",
	}, &signed)
	if err != nil {
		return nil, err
	}

	return &signed, nil
}

func (c *Client) Sync(ctx context.Context, project string, req SyncRequest) (*SyncReport, error) {
	if req.FileID == nil && req.FolderID == nil {
		return nil, errors.New("either a file or a folder must be given")
	}

	var report SyncReport
	if err := c.call(ctx, &opts{method: http.MethodPost, path: projectPath(project, "sync"), body: req}, &report); err != nil {
		return nil, err
	}

	return &report, nil
}

func (c *Client) Quota(ctx context.Context) (*Quota, error) {
	var q Quota
	if err := c.call(ctx, &opts{method: http.MethodGet, path: "/api/storage/quota"}, &q); err != nil {
		return nil, err
	}

	return &q, nil
}
