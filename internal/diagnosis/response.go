package diagnosis

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/Skufu/GoTriage/internal/models"
)

var validate = validator.New()

type rawResult struct {
	MainDiagnosis string  `json:"main_diagnosis"`
	Confidence    flexInt `json:"confidence"`
	TriageLevel   string  `json:"triage_level"`
	Explanation   string  `json:"explanation"`
}

// flexInt accepts 85, 85.0, "85" and "85%".
type flexInt struct {
	value int
	set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || math.Abs(n) > math.MaxInt32 {
		return fmt.Errorf("confidence %q is not a finite number", s)
	}
	f.value = int(math.Round(n))
	f.set = true
	return nil
}

// CleanResponse removes the formatting models add despite being told not to:
// code fences, a bare "json" language tag, and prose around the object.
func CleanResponse(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)
	if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		s = strings.TrimSpace(s[4:])
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

// ParseResponse turns the model's text into a validated result. Any decode or
// validation failure is reported as ErrMalformedResponse.
func ParseResponse(raw string) (models.DiagnosisResult, error) {
	cleaned := CleanResponse(raw)

	var parsed rawResult
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return models.DiagnosisResult{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if !parsed.Confidence.set {
		return models.DiagnosisResult{}, fmt.Errorf("%w: confidence missing", ErrMalformedResponse)
	}

	level, _ := models.ParseTriageLevel(parsed.TriageLevel)
	result := models.DiagnosisResult{
		MainDiagnosis: strings.TrimSpace(parsed.MainDiagnosis),
		Confidence:    parsed.Confidence.value,
		TriageLevel:   level,
		Explanation:   strings.TrimSpace(parsed.Explanation),
	}
	if err := validate.Struct(result); err != nil {
		return models.DiagnosisResult{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return result, nil
}
