package diagnosis

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Skufu/GoTriage/internal/models"
)

type generateCall struct {
	model    string
	prompt   string
	hasImage bool
}

type fakeGenerator struct {
	listFn     func(ctx context.Context) ([]ModelInfo, error)
	generateFn func(ctx context.Context, call generateCall) (string, error)

	listCalls int
	calls     []generateCall
}

func (f *fakeGenerator) ListModels(ctx context.Context) ([]ModelInfo, error) {
	f.listCalls++
	if f.listFn == nil {
		return sampleModels, nil
	}
	return f.listFn(ctx)
}

func (f *fakeGenerator) Generate(ctx context.Context, model, prompt string, image *ImagePart) (string, error) {
	call := generateCall{model: model, prompt: prompt, hasImage: image != nil}
	f.calls = append(f.calls, call)
	return f.generateFn(ctx, call)
}

const validAnswer = `{"main_diagnosis":"Possible Fungal Infection","confidence":85,"triage_level":"urgent","explanation":"Recommendation: refer to clinic."}`

func newTestAdapter(gen Generator) *Adapter {
	return NewAdapter(gen, Options{
		PreferredModels: []string{"models/gemini-2.5-flash"},
		AITimeout:       time.Second,
		ImageTimeout:    time.Second,
	}, zap.NewNop())
}

func TestDiagnoseSimulationWithoutKey(t *testing.T) {
	a := newTestAdapter(nil)

	got := a.Diagnose(context.Background(), "itchy rash", "", models.PatientInfo{Age: 30})
	assert.Equal(t, SimulationResult, got)
	assert.True(t, a.Simulated())
}

func TestDiagnoseSuccess(t *testing.T) {
	gen := &fakeGenerator{generateFn: func(context.Context, generateCall) (string, error) {
		return "```json\n" + validAnswer + "\n```", nil
	}}

	got := newTestAdapter(gen).Diagnose(context.Background(), "itchy rash", "", models.PatientInfo{Age: 30, Gender: "Male"})

	assert.Equal(t, models.DiagnosisResult{
		MainDiagnosis: "Possible Fungal Infection",
		Confidence:    85,
		TriageLevel:   models.TriageUrgent,
		Explanation:   "Recommendation: refer to clinic.",
	}, got)
	require.Len(t, gen.calls, 1)
	assert.Equal(t, "models/gemini-2.5-flash", gen.calls[0].model)
	assert.Contains(t, gen.calls[0].prompt, "itchy rash")
}

func TestDiagnoseMapsRemoteErrors(t *testing.T) {
	cases := map[string]models.DiagnosisResult{
		"Error 429: quota exceeded":      RateLimitResult,
		"Error 404: model not found":     ModelErrorResult,
		"internal server error":          AnalysisErrorResult,
		"I cannot help with that, sorry": ParsingErrorResult,
	}

	for msg, want := range cases {
		t.Run(msg, func(t *testing.T) {
			gen := &fakeGenerator{generateFn: func(context.Context, generateCall) (string, error) {
				if want == ParsingErrorResult {
					return msg, nil
				}
				return "", errors.New(msg)
			}}
			assert.Equal(t, want, newTestAdapter(gen).Diagnose(context.Background(), "cough", "", models.PatientInfo{}))
		})
	}
}

func TestDiagnoseNoUsableModel(t *testing.T) {
	gen := &fakeGenerator{
		listFn: func(context.Context) ([]ModelInfo, error) {
			return []ModelInfo{{Name: "models/embedding-001", SupportedActions: []string{"embedContent"}}}, nil
		},
		generateFn: func(context.Context, generateCall) (string, error) { return validAnswer, nil },
	}

	got := newTestAdapter(gen).Diagnose(context.Background(), "cough", "", models.PatientInfo{})
	assert.Equal(t, UnavailableResult, got)
	assert.Empty(t, gen.calls)
}

func TestDiagnoseListingFailure(t *testing.T) {
	gen := &fakeGenerator{
		listFn:     func(context.Context) ([]ModelInfo, error) { return nil, errors.New("invalid api key") },
		generateFn: func(context.Context, generateCall) (string, error) { return validAnswer, nil },
	}

	got := newTestAdapter(gen).Diagnose(context.Background(), "cough", "", models.PatientInfo{})
	assert.Equal(t, InitializationErrorResult, got)
}

func TestDiagnoseRetriesTextOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	}))
	defer srv.Close()

	gen := &fakeGenerator{generateFn: func(_ context.Context, call generateCall) (string, error) {
		if call.hasImage {
			return "", errors.New("unsupported image payload")
		}
		return validAnswer, nil
	}}

	got := newTestAdapter(gen).Diagnose(context.Background(), "rash", srv.URL+"/img.png", models.PatientInfo{})

	assert.Equal(t, "Possible Fungal Infection", got.MainDiagnosis)
	require.Len(t, gen.calls, 2)
	assert.True(t, gen.calls[0].hasImage)
	assert.False(t, gen.calls[1].hasImage)
	assert.Contains(t, gen.calls[0].prompt, "Visual symptoms from uploaded image at: "+srv.URL+"/img.png")
}

func TestDiagnoseImageFetchFailureIsTextOnly(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	gen := &fakeGenerator{generateFn: func(context.Context, generateCall) (string, error) {
		return validAnswer, nil
	}}

	got := newTestAdapter(gen).Diagnose(context.Background(), "rash", srv.URL+"/gone.png", models.PatientInfo{})

	assert.Equal(t, models.TriageUrgent, got.TriageLevel)
	require.Len(t, gen.calls, 1)
	assert.False(t, gen.calls[0].hasImage)
}

func TestDiagnoseBoundsGeneration(t *testing.T) {
	gen := &fakeGenerator{generateFn: func(ctx context.Context, _ generateCall) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	a := NewAdapter(gen, Options{AITimeout: 20 * time.Millisecond}, zap.NewNop())

	got := a.Diagnose(context.Background(), "cough", "", models.PatientInfo{})
	assert.Equal(t, AnalysisErrorResult, got)
}

func TestAdapterModels(t *testing.T) {
	usable, err := newTestAdapter(&fakeGenerator{}).Models(context.Background())
	require.NoError(t, err)
	assert.Len(t, usable, 2)

	_, err = newTestAdapter(nil).Models(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
}
