package diagnosis

import (
	"fmt"
	"strings"

	"github.com/Skufu/GoTriage/internal/models"
)

const responseFormat = `{
  "main_diagnosis": "Most probable condition (e.g., 'Possible Bacterial Skin Infection')",
  "confidence": <An integer confidence score between 50 and 95>,
  "triage_level": "<One of: 'CRITICAL', 'URGENT', or 'STABLE'>",
  "explanation": "<A brief, simple explanation and recommendation in 1-2 sentences for the health worker. Start with 'Recommendation:' and advise on next steps (e.g., refer immediately, monitor symptoms, provide basic care).>"
}`

// BuildPrompt renders the instruction frame, the patient details and the
// required answer format into a single prompt.
func BuildPrompt(symptoms, imageURL string, patient models.PatientInfo) string {
	gender := strings.TrimSpace(patient.Gender)
	if gender == "" {
		gender = "N/A"
	}
	symptoms = strings.TrimSpace(symptoms)
	if symptoms == "" {
		symptoms = "No text symptoms provided."
	}

	lines := []string{
		"You are an expert medical AI assistant for Community Health Workers in rural India.",
		"Your goal is to provide a preliminary analysis and triage recommendation based on patient data.",
		"Do NOT give a definitive diagnosis. Your response must be cautious and guide the health worker.",
		"Keep responses concise to respect rate limits.",
		fmt.Sprintf("Patient Information: Age: %d, Gender: %s.", patient.Age, gender),
	}
	if imageURL != "" {
		lines = append(lines, "Visual symptoms from uploaded image at: "+imageURL)
	}
	lines = append(lines,
		"Text Symptoms from Patient/Worker: "+symptoms,
		"---",
		"Analyze the provided information and respond ONLY with a single, valid JSON object in the following format (no extra text, code blocks, or explanations):",
		responseFormat,
		"---",
	)
	return strings.Join(lines, "\n")
}
