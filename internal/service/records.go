// Package service runs a submission end to end: media upload, AI triage and
// persistence, plus the read paths behind the result pages and dashboard.
package service

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Skufu/GoTriage/internal/media"
	"github.com/Skufu/GoTriage/internal/models"
)

type Diagnoser interface {
	Diagnose(ctx context.Context, symptoms, imageURL string, patient models.PatientInfo) models.DiagnosisResult
}

type RecordStore interface {
	Insert(ctx context.Context, record models.PatientRecord) (models.PatientRecord, error)
	FindByID(ctx context.Context, id string) (models.PatientRecord, error)
	List(ctx context.Context) ([]models.PatientRecord, error)
}

type MediaSaver interface {
	Save(ctx context.Context, name string, upload media.Upload) (string, error)
}

type SubmitInput struct {
	Patient  models.PatientInfo
	Symptoms string
	Image    *media.Upload
	Voice    *media.Upload
}

type Stats struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	Urgent   int `json:"urgent"`
	Stable   int `json:"stable"`
}

type Dashboard struct {
	Records []models.PatientRecord `json:"records"`
	Stats   Stats                  `json:"stats"`
}

type RecordService struct {
	records   RecordStore
	media     MediaSaver
	diagnoser Diagnoser
	log       *zap.Logger
}

func NewRecordService(records RecordStore, mediaSaver MediaSaver, diagnoser Diagnoser, log *zap.Logger) *RecordService {
	return &RecordService{records: records, media: mediaSaver, diagnoser: diagnoser, log: log}
}

// Submit stores the media, asks for a diagnosis and persists the record. The
// only error it returns is a persistence failure.
func (s *RecordService) Submit(ctx context.Context, in SubmitInput) (string, error) {
	submission := models.SubmissionMedia{
		ImageURL: s.saveMedia(ctx, "img", ".jpg", in.Image),
		VoiceURL: s.saveMedia(ctx, "voice", ".webm", in.Voice),
	}

	result := s.diagnoser.Diagnose(ctx, in.Symptoms, submission.ImageURL, in.Patient)

	record := models.NewPatientRecord(in.Patient, in.Symptoms, submission, result)
	saved, err := s.records.Insert(ctx, record)
	if err != nil {
		return "", err
	}

	s.log.Info("submission recorded",
		zap.String("record_id", saved.ID.String()),
		zap.String("triage_level", string(saved.TriageLevel)),
		zap.Bool("has_image", submission.ImageURL != ""),
		zap.Bool("has_voice", submission.VoiceURL != ""),
	)
	return saved.ID.String(), nil
}

func (s *RecordService) saveMedia(ctx context.Context, prefix, fallbackExt string, upload *media.Upload) string {
	if upload == nil {
		return ""
	}
	if len(upload.Data) == 0 {
		s.log.Debug("empty upload skipped", zap.String("kind", prefix), zap.String("filename", upload.Filename))
		return ""
	}
	name := media.ObjectName(prefix, upload.Filename, fallbackExt)
	url, err := s.media.Save(ctx, name, *upload)
	if err != nil {
		s.log.Warn("media dropped from submission", zap.String("kind", prefix), zap.Error(err))
		return ""
	}
	return url
}

func (s *RecordService) Get(ctx context.Context, id string) (models.PatientRecord, error) {
	return s.records.FindByID(ctx, strings.TrimSpace(id))
}

func (s *RecordService) Dashboard(ctx context.Context) (Dashboard, error) {
	records, err := s.records.List(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	stats := Stats{Total: len(records)}
	for _, r := range records {
		switch r.TriageLevel {
		case models.TriageCritical:
			stats.Critical++
		case models.TriageUrgent:
			stats.Urgent++
		case models.TriageStable:
			stats.Stable++
		}
	}
	return Dashboard{Records: records, Stats: stats}, nil
}

// ParseAge coerces the form value; anything unparseable or negative is 0.
func ParseAge(raw string) int {
	age, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || age < 0 {
		return 0
	}
	return age
}
