package whatsapp

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// mediaFetcher downloads media locators before upload.
type mediaFetcher struct {
	client *http.Client
	limit  int64
}

// fetch returns the body at rawURL and its mimetype, taken from the
// response header or sniffed from the content.
func (f *mediaFetcher) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("media request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch media %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, "", fmt.Errorf("fetch media %s: %s", rawURL, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("read media %s: %w", rawURL, err)
	}
	if int64(len(data)) > f.limit {
		return nil, "", fmt.Errorf("media %s exceeds %d bytes", rawURL, f.limit)
	}

	mimetype := ""
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt != "application/octet-stream" {
			mimetype = mt
		}
	}
	if mimetype == "" {
		mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
		mimetype = mt
	}
	return data, mimetype, nil
}
