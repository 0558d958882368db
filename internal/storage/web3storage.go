package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const maxErrorBody = 512

// Web3Storage uploads files through the web3.storage HTTP API.
type Web3Storage struct {
	client      *http.Client
	apiURL      string
	token       string
	gatewayHost string
}

// NewWeb3Storage creates an uploader for apiURL authenticated with token.
func NewWeb3Storage(apiURL, token, gatewayHost string) *Web3Storage {
	return &Web3Storage{
		client:      &http.Client{Timeout: 5 * time.Minute},
		apiURL:      strings.TrimRight(apiURL, "/"),
		token:       token,
		gatewayHost: gatewayHost,
	}
}

type uploadResponse struct {
	CID string `json:"cid"`
}

// Upload sends the file as a one-entry directory so the gateway URL can end with its name.
func (w *Web3Storage) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	if w.token == "" {
		return "", ErrMissingCredential
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.apiURL+"/upload", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		slog.Error("Error uploading to IPFS", slog.String("filename", filename), slog.Any("err", err))
		return "", fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		slog.Error("Error uploading to IPFS", slog.String("filename", filename), slog.Int("status", resp.StatusCode))
		return "", fmt.Errorf("failed to upload %s: status %d: %s", filename, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if out.CID == "" {
		return "", ErrMissingCID
	}
	return GatewayURL(out.CID, w.gatewayHost, filename), nil
}
