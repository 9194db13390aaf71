package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Skufu/GoTriage/internal/models"
)

func TestResultForError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		diagnosis  string
		confidence int
		level      models.TriageLevel
	}{
		{"no credential", ErrNoCredential, "Simulation Mode (No API Key)", 75, models.TriageUrgent},
		{"listing failed", fmt.Errorf("%w: %w", ErrModelDiscovery, errors.New("permission denied")), "AI Initialization Error", 0, models.TriageUrgent},
		{"no model", ErrNoModel, "AI Unavailable", 0, models.TriageUrgent},
		{"malformed", fmt.Errorf("%w: unexpected end of JSON input", ErrMalformedResponse), "Parsing Error - Incomplete Analysis", 50, models.TriageUrgent},
		{"model 404", errors.New("Error 404, Message: models/gemini-x is not found"), "API Model Error", 0, models.TriageUrgent},
		{"not found wording", errors.New("requested entity Not Found"), "API Model Error", 0, models.TriageUrgent},
		{"quota", errors.New("Error 429: Quota exceeded for metric"), "Rate Limit Exceeded", 0, models.TriageStable},
		{"rate limit", errors.New("rate limit hit"), "Rate Limit Exceeded", 0, models.TriageStable},
		{"timeout", context.DeadlineExceeded, "AI Analysis Error", 50, models.TriageUrgent},
		{"other", errors.New("connection reset by peer"), "AI Analysis Error", 50, models.TriageUrgent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResultForError(tc.err)
			assert.Equal(t, tc.diagnosis, got.MainDiagnosis)
			assert.Equal(t, tc.confidence, got.Confidence)
			assert.Equal(t, tc.level, got.TriageLevel)
			assert.NotEmpty(t, got.Explanation)
		})
	}
}

func TestFallbackResultsAreValid(t *testing.T) {
	for _, r := range []models.DiagnosisResult{
		SimulationResult, UnavailableResult, InitializationErrorResult, ParsingErrorResult,
		ModelErrorResult, RateLimitResult, AnalysisErrorResult,
	} {
		assert.NoError(t, validate.Struct(r), r.MainDiagnosis)
	}
}
