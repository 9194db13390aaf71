// Package media stores patient photos and voice clips. Object storage is
// tried first; the local static uploads directory catches everything else.
package media

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNoBackend = errors.New("no media backend accepted the file")

// Upload is a file received from the submission form.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Store saves a named object and returns a URL the browser and the AI
// adapter can fetch it from.
type Store interface {
	Name() string
	Save(ctx context.Context, name string, upload Upload) (string, error)
}

// Chain tries each store in order and returns the first URL produced.
type Chain struct {
	stores  []Store
	log     *zap.Logger
	timeout time.Duration
}

// NewChain keeps only non-nil stores, so callers can pass an absent remote
// store without branching.
func NewChain(log *zap.Logger, timeout time.Duration, stores ...Store) *Chain {
	kept := make([]Store, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Chain{stores: kept, log: log, timeout: timeout}
}

func (c *Chain) Save(ctx context.Context, name string, upload Upload) (string, error) {
	var errs []error
	for _, s := range c.stores {
		saveCtx, cancel := ctx, context.CancelFunc(func() {})
		if c.timeout > 0 {
			saveCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}
		url, err := s.Save(saveCtx, name, upload)
		cancel()
		if err == nil && url != "" {
			c.log.Info("media stored",
				zap.String("backend", s.Name()),
				zap.String("file", name),
				zap.Int("bytes", len(upload.Data)),
			)
			return url, nil
		}
		if err == nil {
			err = errors.New("empty url")
		}
		c.log.Warn("media store failed", zap.String("backend", s.Name()), zap.String("file", name), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	if len(errs) == 0 {
		return "", ErrNoBackend
	}
	return "", fmt.Errorf("%w: %w", ErrNoBackend, errors.Join(errs...))
}

// ObjectName builds a unique object name such as img_1718000000_1a2b3c4d.jpg.
// The extension comes from the client filename, or fallbackExt when it has
// none.
func ObjectName(prefix, filename, fallbackExt string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || ext == "." {
		ext = fallbackExt
	}
	ext = sanitizeExt(ext)
	return fmt.Sprintf("%s_%d_%s%s", prefix, time.Now().Unix(), uuid.NewString()[:8], ext)
}

func sanitizeExt(ext string) string {
	var b strings.Builder
	for _, r := range ext {
		if r == '.' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out != "" && !strings.HasPrefix(out, ".") {
		out = "." + out
	}
	return out
}
