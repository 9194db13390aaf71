package models

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

type TriageLevel string

const (
	TriageCritical TriageLevel = "CRITICAL"
	TriageUrgent   TriageLevel = "URGENT"
	TriageStable   TriageLevel = "STABLE"
)

// ParseTriageLevel normalises case and surrounding whitespace. The second
// return value is false for anything outside the three known levels.
func ParseTriageLevel(s string) (TriageLevel, bool) {
	level := TriageLevel(strings.ToUpper(strings.TrimSpace(s)))
	switch level {
	case TriageCritical, TriageUrgent, TriageStable:
		return level, true
	}
	return level, false
}

type PatientInfo struct {
	Name   string `json:"patient_name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

type SubmissionMedia struct {
	ImageURL string `json:"image_file_url,omitempty"`
	VoiceURL string `json:"voice_file_url,omitempty"`
}

type DiagnosisResult struct {
	MainDiagnosis string      `json:"main_diagnosis" validate:"required"`
	Confidence    int         `json:"confidence" validate:"min=0,max=100"`
	TriageLevel   TriageLevel `json:"triage_level" validate:"required,oneof=CRITICAL URGENT STABLE"`
	Explanation   string      `json:"explanation" validate:"required"`
}

// PatientRecord is the persisted shape shared by the remote table and the
// local JSON-lines log.
type PatientRecord struct {
	ID           RecordID    `json:"id"`
	PatientName  string      `json:"patient_name"`
	Age          int         `json:"age"`
	Gender       string      `json:"gender"`
	SymptomsText string      `json:"symptoms_text"`
	ImageFileURL string      `json:"image_file_url,omitempty"`
	VoiceFileURL string      `json:"voice_file_url,omitempty"`
	AIDiagnosis  string      `json:"ai_diagnosis"`
	Confidence   int         `json:"confidence"`
	TriageLevel  TriageLevel `json:"triage_level"`
	Explanation  string      `json:"explanation"`
	CreatedAt    time.Time   `json:"created_at"`
}

// NewPatientRecord composes a record without id or timestamp; the store that
// accepts it assigns both.
func NewPatientRecord(patient PatientInfo, symptoms string, media SubmissionMedia, result DiagnosisResult) PatientRecord {
	return PatientRecord{
		PatientName:  patient.Name,
		Age:          patient.Age,
		Gender:       patient.Gender,
		SymptomsText: symptoms,
		ImageFileURL: media.ImageURL,
		VoiceFileURL: media.VoiceURL,
		AIDiagnosis:  result.MainDiagnosis,
		Confidence:   result.Confidence,
		TriageLevel:  result.TriageLevel,
		Explanation:  result.Explanation,
	}
}

// RecordID is a record identifier. Older rows may carry numeric ids, so
// decoding accepts both JSON strings and numbers.
type RecordID string

func (id RecordID) String() string {
	return string(id)
}

func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = RecordID(n.String())
	return nil
}

// UnmarshalJSON accepts rows written by earlier versions of the app: naive
// ISO timestamps (read as UTC), confidence stored as a string, and lower-case
// triage levels.
func (r *PatientRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID           RecordID  `json:"id"`
		PatientName  string    `json:"patient_name"`
		Age          looseInt  `json:"age"`
		Gender       string    `json:"gender"`
		SymptomsText string    `json:"symptoms_text"`
		ImageFileURL string    `json:"image_file_url"`
		VoiceFileURL string    `json:"voice_file_url"`
		AIDiagnosis  string    `json:"ai_diagnosis"`
		Confidence   looseInt  `json:"confidence"`
		TriageLevel  string    `json:"triage_level"`
		Explanation  string    `json:"explanation"`
		CreatedAt    looseTime `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	level, _ := ParseTriageLevel(raw.TriageLevel)
	*r = PatientRecord{
		ID:           raw.ID,
		PatientName:  raw.PatientName,
		Age:          int(raw.Age),
		Gender:       raw.Gender,
		SymptomsText: raw.SymptomsText,
		ImageFileURL: raw.ImageFileURL,
		VoiceFileURL: raw.VoiceFileURL,
		AIDiagnosis:  raw.AIDiagnosis,
		Confidence:   int(raw.Confidence),
		TriageLevel:  level,
		Explanation:  raw.Explanation,
		CreatedAt:    raw.CreatedAt.Time,
	}
	return nil
}

// looseInt decodes numbers, numeric strings and "85%". Anything else is 0.
type looseInt int

func (n *looseInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		*n = 0
		return nil
	}
	*n = looseInt(math.Round(f))
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
}

// looseTime reads RFC 3339 and zone-less ISO timestamps. Zone-less values
// are UTC.
type looseTime struct {
	time.Time
}

func (t *looseTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}
