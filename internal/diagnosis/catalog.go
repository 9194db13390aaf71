package diagnosis

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

const generateContentAction = "generateContent"

type ModelInfo struct {
	Name             string   `json:"name"`
	SupportedActions []string `json:"supported_actions"`
}

func (m ModelInfo) SupportsGenerate() bool {
	return slices.Contains(m.SupportedActions, generateContentAction)
}

// ChooseModel returns the first preferred model the account lists, else the
// first listed model that supports content generation.
func ChooseModel(available []ModelInfo, preferred []string) (string, error) {
	names := make(map[string]struct{}, len(available))
	for _, m := range available {
		names[m.Name] = struct{}{}
	}
	for _, candidate := range preferred {
		if _, ok := names[candidate]; ok {
			return candidate, nil
		}
	}
	for _, m := range available {
		if m.SupportsGenerate() {
			return m.Name, nil
		}
	}
	return "", ErrNoModel
}

// ModelCache holds the discovered model list between calls.
type ModelCache interface {
	Load(ctx context.Context) ([]ModelInfo, bool)
	Store(ctx context.Context, models []ModelInfo)
}

// Catalog discovers models through the generator and remembers the list in
// its cache.
type Catalog struct {
	lister    ModelLister
	cache     ModelCache
	preferred []string
	log       *zap.Logger
}

type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

func NewCatalog(lister ModelLister, cache ModelCache, preferred []string, log *zap.Logger) *Catalog {
	return &Catalog{lister: lister, cache: cache, preferred: preferred, log: log}
}

func (c *Catalog) Models(ctx context.Context) ([]ModelInfo, error) {
	if c.cache != nil {
		if cached, ok := c.cache.Load(ctx); ok {
			return cached, nil
		}
	}

	listed, err := c.lister.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelDiscovery, err)
	}
	if c.cache != nil && len(listed) > 0 {
		c.cache.Store(ctx, listed)
	}
	return listed, nil
}

// Select picks the model used for generation.
func (c *Catalog) Select(ctx context.Context) (string, error) {
	available, err := c.Models(ctx)
	if err != nil {
		return "", err
	}
	chosen, err := ChooseModel(available, c.preferred)
	if err != nil {
		c.log.Error("no model supporting generateContent is available", zap.Int("listed", len(available)))
		return "", err
	}
	c.log.Debug("using generative model", zap.String("model", chosen))
	return chosen, nil
}
