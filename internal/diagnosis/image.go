package diagnosis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxImageBytes = 20 << 20

// ImagePart is an image sent inline with the prompt.
type ImagePart struct {
	MIMEType string
	Data     []byte
}

// ImageFetcher downloads the uploaded photo so it can be sent to the model.
type ImageFetcher struct {
	client *http.Client
}

func NewImageFetcher(timeout time.Duration) *ImageFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ImageFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *ImageFetcher) Fetch(ctx context.Context, url string) (*ImagePart, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("fetch image: empty body")
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("fetch image: larger than %d bytes", maxImageBytes)
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.TrimSpace(mime)
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return &ImagePart{MIMEType: mime, Data: data}, nil
}
