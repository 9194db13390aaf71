package diagnosis

import (
	"errors"
	"strings"

	"github.com/Skufu/GoTriage/internal/models"
)

var (
	// ErrNoCredential means no API key is configured. The adapter answers in
	// simulation mode.
	ErrNoCredential = errors.New("no AI API key configured")
	// ErrModelDiscovery wraps failures while listing the account's models.
	ErrModelDiscovery = errors.New("model discovery failed")
	// ErrNoModel means the account lists no model that can generate content.
	ErrNoModel = errors.New("no generative model available")
	// ErrMalformedResponse means the model answered with something that is not
	// a complete, valid result object.
	ErrMalformedResponse = errors.New("malformed AI response")
)

var (
	SimulationResult = models.DiagnosisResult{
		MainDiagnosis: "Simulation Mode (No API Key)",
		Confidence:    75,
		TriageLevel:   models.TriageUrgent,
		Explanation:   "API Key not found. This is a simulated response. Please provide a Gemini API key in the .env file for real analysis.",
	}
	UnavailableResult = models.DiagnosisResult{
		MainDiagnosis: "AI Unavailable",
		Confidence:    0,
		TriageLevel:   models.TriageUrgent,
		Explanation:   "No generative model available in your account. Please verify the API key and model access.",
	}
	InitializationErrorResult = models.DiagnosisResult{
		MainDiagnosis: "AI Initialization Error",
		Confidence:    0,
		TriageLevel:   models.TriageUrgent,
		Explanation:   "Recommendation: Unable to initialize the AI model. Proceed with manual assessment.",
	}
	ParsingErrorResult = models.DiagnosisResult{
		MainDiagnosis: "Parsing Error - Incomplete Analysis",
		Confidence:    50,
		TriageLevel:   models.TriageUrgent,
		Explanation:   "Recommendation: Response format issue. Proceed with caution and refer to a clinic.",
	}
	ModelErrorResult = models.DiagnosisResult{
		MainDiagnosis: "API Model Error",
		Confidence:    0,
		TriageLevel:   models.TriageUrgent,
		Explanation:   "Recommendation: Model not accessible (e.g., 404 error). Manual triage required; seek professional help now.",
	}
	RateLimitResult = models.DiagnosisResult{
		MainDiagnosis: "Rate Limit Exceeded",
		Confidence:    0,
		TriageLevel:   models.TriageStable,
		Explanation:   "Recommendation: API quota reached. Wait and retry, or use manual assessment.",
	}
	AnalysisErrorResult = models.DiagnosisResult{
		MainDiagnosis: "AI Analysis Error",
		Confidence:    50,
		TriageLevel:   models.TriageUrgent,
		Explanation:   "Recommendation: The AI service could not process the request. Please proceed with manual assessment.",
	}
)

// ResultForError maps an error from the analysis path to the result shown to
// the health worker. Classified sentinels are matched first; anything else is
// a remote failure classified by its message.
func ResultForError(err error) models.DiagnosisResult {
	switch {
	case err == nil:
		return AnalysisErrorResult
	case errors.Is(err, ErrNoCredential):
		return SimulationResult
	case errors.Is(err, ErrModelDiscovery):
		return InitializationErrorResult
	case errors.Is(err, ErrNoModel):
		return UnavailableResult
	case errors.Is(err, ErrMalformedResponse):
		return ParsingErrorResult
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "404") || strings.Contains(msg, "not found"):
		return ModelErrorResult
	case strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit"):
		return RateLimitResult
	default:
		return AnalysisErrorResult
	}
}
