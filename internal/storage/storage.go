package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
)

// DefaultGatewayHost is the public IPFS gateway used to build file URLs.
const DefaultGatewayHost = "dweb.link"

var (
	// ErrMissingCredential is returned when the storage access credential is not configured.
	ErrMissingCredential = errors.New("storage credential is missing")
	// ErrMissingCID is returned when the storage network does not report a content identifier.
	ErrMissingCID = errors.New("storage response has no content identifier")
)

// Uploader stores a single file on a content-addressed network and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, filename string, content io.Reader) (string, error)
}

// GatewayURL builds https://<cid>.ipfs.<gatewayHost>/<filename> for a CID that wraps
// the file in a directory.
func GatewayURL(cid, gatewayHost, filename string) string {
	return fmt.Sprintf("https://%s.ipfs.%s/%s", cid, gatewayHostOrDefault(gatewayHost), url.PathEscape(filename))
}

// GatewayFileURL builds a URL for a CID that addresses the file itself; the name is
// passed as the gateway's download filename.
func GatewayFileURL(cid, gatewayHost, filename string) string {
	return fmt.Sprintf("https://%s.ipfs.%s/?filename=%s", cid, gatewayHostOrDefault(gatewayHost), url.QueryEscape(filename))
}

func gatewayHostOrDefault(host string) string {
	if host == "" {
		return DefaultGatewayHost
	}
	return host
}
