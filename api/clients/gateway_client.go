package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/ruteri/cas-gateway/api"
)

// RequestError is returned when the gateway answers with an error envelope
// or an unexpected status code.
type RequestError struct {
	// StatusCode is the HTTP status returned by the gateway.
	StatusCode int

	// Kind is the gateway error kind, e.g. "FetchFailed". Empty when the
	// response carried no error envelope.
	Kind string

	// Message is the gateway's error message or the raw response body.
	Message string
}

func (e *RequestError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway returned %d (%s): %s", e.StatusCode, e.Kind, e.Message)
}

// GatewayClient is a typed client for the gateway HTTP routes.
type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGatewayClient creates a client for the gateway at baseURL
// (e.g. "http://localhost:8080"). The optional timeout defaults to 30 seconds.
func NewGatewayClient(baseURL string, timeout ...time.Duration) *GatewayClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &GatewayClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
	}
}

// Status returns the server status message.
func (c *GatewayClient) Status(ctx context.Context) (string, error) {
	var resp api.Response[string]
	if err := c.do(ctx, http.MethodGet, "/", "", nil, http.StatusCreated, &resp); err != nil {
		return "", err
	}
	return resp.Data, nil
}

// UploadFile uploads data as a multipart file named filename and returns
// its address. The gateway accepts only its allowed file types.
func (c *GatewayClient) UploadFile(ctx context.Context, filename string, data []byte) (string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile(api.FileFormField, filename)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	var resp api.Response[api.UploadResponse]
	if err := c.do(ctx, http.MethodPost, "/file", mw.FormDataContentType(), body, http.StatusCreated, &resp); err != nil {
		return "", err
	}
	return resp.Data.CID, nil
}

// UploadRecord uploads a JSON record and returns its address.
func (c *GatewayClient) UploadRecord(ctx context.Context, record json.RawMessage) (string, error) {
	var resp api.Response[api.UploadResponse]
	if err := c.do(ctx, http.MethodPost, "/record", "application/json", bytes.NewReader(record), http.StatusCreated, &resp); err != nil {
		return "", err
	}
	return resp.Data.CID, nil
}

// GetFile fetches and decodes the file at cid.
func (c *GatewayClient) GetFile(ctx context.Context, cid string) ([]byte, error) {
	var resp api.Response[api.FileResponse]
	if err := c.do(ctx, http.MethodGet, "/file?"+hashQuery(cid), "", nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data.Data)
	if err != nil {
		return nil, fmt.Errorf("could not decode file content: %w", err)
	}
	return data, nil
}

// GetRecord fetches the record at cid.
func (c *GatewayClient) GetRecord(ctx context.Context, cid string) (json.RawMessage, error) {
	var resp api.Response[api.RecordResponse]
	if err := c.do(ctx, http.MethodGet, "/record?"+hashQuery(cid), "", nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Data, nil
}

// GetRecords fetches the records at cids, in order.
func (c *GatewayClient) GetRecords(ctx context.Context, cids []string) ([]json.RawMessage, error) {
	body, err := batchBody(cids)
	if err != nil {
		return nil, err
	}

	var resp api.Response[api.RecordsResponse]
	if err := c.do(ctx, http.MethodPost, "/records", "application/json", body, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Data, nil
}

// GetFiles fetches and decodes the files at cids, in order.
func (c *GatewayClient) GetFiles(ctx context.Context, cids []string) ([][]byte, error) {
	body, err := batchBody(cids)
	if err != nil {
		return nil, err
	}

	var resp api.Response[api.FilesResponse]
	if err := c.do(ctx, http.MethodPost, "/files", "application/json", body, http.StatusOK, &resp); err != nil {
		return nil, err
	}

	files := make([][]byte, len(resp.Data.Data))
	for i, encoded := range resp.Data.Data {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("could not decode file %d: %w", i, err)
		}
		files[i] = data
	}
	return files, nil
}

func hashQuery(cid string) string {
	return url.Values{api.HashQueryParam: []string{cid}}.Encode()
}

func batchBody(cids []string) (io.Reader, error) {
	if cids == nil {
		cids = []string{}
	}
	data, err := json.Marshal(api.BatchRequest{Hashes: cids})
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch request: %w", err)
	}
	return bytes.NewReader(data), nil
}

func (c *GatewayClient) do(ctx context.Context, method, path, contentType string, body io.Reader, wantStatus int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s request failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != wantStatus {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Kind != "" {
			return &RequestError{StatusCode: resp.StatusCode, Kind: errResp.Error.Kind, Message: errResp.Error.Message}
		}
		return &RequestError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("could not parse response: %w", err)
	}
	return nil
}
