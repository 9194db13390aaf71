package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIDAcceptsStringAndNumber(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want RecordID
	}{
		{"uuid string", `{"id":"6f1c2a9e-1111-4c0b-9a55-2f8e3d9c0a11"}`, "6f1c2a9e-1111-4c0b-9a55-2f8e3d9c0a11"},
		{"integer", `{"id":42}`, "42"},
		{"null", `{"id":null}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec PatientRecord
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &rec))
			assert.Equal(t, tt.want, rec.ID)
		})
	}
}

func TestRecordIDRejectsObjects(t *testing.T) {
	var rec PatientRecord
	assert.Error(t, json.Unmarshal([]byte(`{"id":{"x":1}}`), &rec))
}

func TestParseTriageLevel(t *testing.T) {
	level, ok := ParseTriageLevel(" critical ")
	assert.True(t, ok)
	assert.Equal(t, TriageCritical, level)

	_, ok = ParseTriageLevel("SEVERE")
	assert.False(t, ok)
}

func TestNewPatientRecordCopiesAllParts(t *testing.T) {
	rec := NewPatientRecord(
		PatientInfo{Name: "Asha", Age: 34, Gender: "F"},
		"rash on forearm",
		SubmissionMedia{ImageURL: "http://x/img.png"},
		DiagnosisResult{MainDiagnosis: "Possible Dermatitis", Confidence: 70, TriageLevel: TriageStable, Explanation: "Recommendation: monitor."},
	)

	assert.Empty(t, rec.ID)
	assert.Equal(t, "Asha", rec.PatientName)
	assert.Equal(t, "http://x/img.png", rec.ImageFileURL)
	assert.Equal(t, TriageStable, rec.TriageLevel)
	assert.Equal(t, 70, rec.Confidence)
}

func TestPatientRecordDecodesLegacyRows(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		confidence int
		level      TriageLevel
		created    time.Time
	}{
		{
			name:       "naive timestamp and string confidence",
			raw:        `{"id":"a","confidence":"85","triage_level":"urgent","created_at":"2025-01-02T03:04:05.123456"}`,
			confidence: 85,
			level:      TriageUrgent,
			created:    time.Date(2025, 1, 2, 3, 4, 5, 123456000, time.UTC),
		},
		{
			name:       "space separated timestamp and percent",
			raw:        `{"id":"b","confidence":"72.6%","triage_level":"STABLE","created_at":"2025-01-02 03:04:05"}`,
			confidence: 73,
			level:      TriageStable,
			created:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		{
			name:       "rfc3339 with offset",
			raw:        `{"id":"c","confidence":90,"triage_level":"CRITICAL","created_at":"2025-01-02T05:04:05+02:00"}`,
			confidence: 90,
			level:      TriageCritical,
			created:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		{
			name:  "null and unreadable values",
			raw:   `{"id":"d","confidence":"NaN","triage_level":"STABLE","created_at":null,"image_file_url":null}`,
			level: TriageStable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec PatientRecord
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &rec))
			assert.Equal(t, tt.confidence, rec.Confidence)
			assert.Equal(t, tt.level, rec.TriageLevel)
			assert.True(t, tt.created.Equal(rec.CreatedAt), "created_at = %v", rec.CreatedAt)
			assert.Empty(t, rec.ImageFileURL)
		})
	}
}

func TestPatientRecordRejectsUnknownTimestamp(t *testing.T) {
	var rec PatientRecord
	assert.Error(t, json.Unmarshal([]byte(`{"id":"a","created_at":"yesterday"}`), &rec))
}

func TestPatientRecordSurvivesRoundTrip(t *testing.T) {
	in := PatientRecord{
		ID:          "r1",
		PatientName: "Asha",
		Confidence:  64,
		TriageLevel: TriageUrgent,
		CreatedAt:   time.Date(2025, 3, 4, 5, 6, 7, 8, time.UTC),
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out PatientRecord
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Confidence, out.Confidence)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
}
