// Package diagnosis asks a generative model for a preliminary triage of a
// patient submission. It never fails: every error is turned into a fixed
// result the health worker can act on.
package diagnosis

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Skufu/GoTriage/internal/config"
	"github.com/Skufu/GoTriage/internal/models"
)

type Options struct {
	PreferredModels []string
	Cache           ModelCache
	AITimeout       time.Duration
	ImageTimeout    time.Duration
}

// OptionsFromConfig copies the AI settings out of the loaded configuration.
func OptionsFromConfig(cfg *config.Config, cache ModelCache) Options {
	return Options{
		PreferredModels: cfg.PreferredModels,
		Cache:           cache,
		AITimeout:       cfg.AITimeout,
		ImageTimeout:    cfg.ImageFetchTimeout,
	}
}

type Adapter struct {
	generator Generator
	catalog   *Catalog
	images    *ImageFetcher
	timeout   time.Duration
	log       *zap.Logger
}

// NewAdapter builds an adapter around gen. A nil gen puts the adapter in
// simulation mode.
func NewAdapter(gen Generator, opts Options, log *zap.Logger) *Adapter {
	if opts.Cache == nil {
		opts.Cache = NewMemoryCache(10 * time.Minute)
	}
	if len(opts.PreferredModels) == 0 {
		opts.PreferredModels = config.DefaultPreferredModels
	}
	if opts.AITimeout <= 0 {
		opts.AITimeout = 30 * time.Second
	}

	a := &Adapter{
		generator: gen,
		images:    NewImageFetcher(opts.ImageTimeout),
		timeout:   opts.AITimeout,
		log:       log,
	}
	if gen != nil {
		a.catalog = NewCatalog(gen, opts.Cache, opts.PreferredModels, log)
	}
	return a
}

func (a *Adapter) Simulated() bool { return a.generator == nil }

// Models lists the models the account can use for generation.
func (a *Adapter) Models(ctx context.Context) ([]ModelInfo, error) {
	if a.generator == nil {
		return nil, ErrNoCredential
	}
	all, err := a.catalog.Models(ctx)
	if err != nil {
		return nil, err
	}
	usable := make([]ModelInfo, 0, len(all))
	for _, m := range all {
		if m.SupportsGenerate() {
			usable = append(usable, m)
		}
	}
	return usable, nil
}

func (a *Adapter) Diagnose(ctx context.Context, symptoms, imageURL string, patient models.PatientInfo) models.DiagnosisResult {
	result, err := a.analyze(ctx, symptoms, imageURL, patient)
	if err == nil {
		return result
	}

	fallback := ResultForError(err)
	if errors.Is(err, ErrNoCredential) {
		a.log.Info("AI key not configured, returning simulated diagnosis")
	} else {
		a.log.Warn("AI analysis failed",
			zap.Error(err),
			zap.String("fallback", fallback.MainDiagnosis),
		)
	}
	return fallback
}

func (a *Adapter) analyze(ctx context.Context, symptoms, imageURL string, patient models.PatientInfo) (models.DiagnosisResult, error) {
	if a.generator == nil {
		return models.DiagnosisResult{}, ErrNoCredential
	}

	model, err := a.catalog.Select(ctx)
	if err != nil {
		return models.DiagnosisResult{}, err
	}

	prompt := BuildPrompt(symptoms, imageURL, patient)

	var image *ImagePart
	if imageURL != "" {
		image, err = a.images.Fetch(ctx, imageURL)
		if err != nil {
			a.log.Warn("image unavailable, continuing text-only", zap.String("url", imageURL), zap.Error(err))
			image = nil
		}
	}

	text, err := a.generate(ctx, model, prompt, image)
	if err != nil && image != nil {
		a.log.Warn("multimodal call failed, retrying text-only", zap.String("model", model), zap.Error(err))
		text, err = a.generate(ctx, model, prompt, nil)
	}
	if err != nil {
		return models.DiagnosisResult{}, err
	}

	return ParseResponse(text)
}

func (a *Adapter) generate(ctx context.Context, model, prompt string, image *ImagePart) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.generator.Generate(ctx, model, prompt, image)
}
