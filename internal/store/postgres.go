package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Skufu/GoTriage/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS patient_records (
	id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	patient_name   TEXT,
	age            INTEGER NOT NULL DEFAULT 0,
	gender         TEXT,
	symptoms_text  TEXT,
	image_file_url TEXT,
	voice_file_url TEXT,
	ai_diagnosis   TEXT,
	confidence     INTEGER,
	triage_level   TEXT,
	explanation    TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS patient_records_created_at_idx ON patient_records (created_at DESC);
`

const selectColumns = `id::text AS id, patient_name, age, gender, symptoms_text, image_file_url,
	voice_file_url, ai_diagnosis, confidence, triage_level, explanation, created_at`

func NewPool(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

// PostgresStore keeps records in the patient_records table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Insert(ctx context.Context, record models.PatientRecord) (models.PatientRecord, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO patient_records
			(patient_name, age, gender, symptoms_text, image_file_url, voice_file_url,
			 ai_diagnosis, confidence, triage_level, explanation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id::text, created_at`,
		nullable(record.PatientName),
		record.Age,
		nullable(record.Gender),
		nullable(record.SymptomsText),
		nullable(record.ImageFileURL),
		nullable(record.VoiceFileURL),
		record.AIDiagnosis,
		record.Confidence,
		string(record.TriageLevel),
		record.Explanation,
	)

	var id string
	var createdAt time.Time
	if err := row.Scan(&id, &createdAt); err != nil {
		return models.PatientRecord{}, fmt.Errorf("insert patient record: %w", err)
	}

	record.ID = models.RecordID(id)
	record.CreatedAt = createdAt.UTC()
	return record, nil
}

// FindByID treats an id that is not a UUID as not found, since only the
// local log issues other id forms.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (models.PatientRecord, error) {
	key, err := uuid.Parse(id)
	if err != nil {
		return models.PatientRecord{}, ErrRecordNotFound
	}

	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+` FROM patient_records WHERE id = $1`, key.String())
	if err != nil {
		return models.PatientRecord{}, fmt.Errorf("select patient record: %w", err)
	}

	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[recordRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PatientRecord{}, ErrRecordNotFound
	}
	if err != nil {
		return models.PatientRecord{}, fmt.Errorf("scan patient record: %w", err)
	}
	return row.toModel(), nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.PatientRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+` FROM patient_records ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list patient records: %w", err)
	}

	scanned, err := pgx.CollectRows(rows, pgx.RowToStructByName[recordRow])
	if err != nil {
		return nil, fmt.Errorf("scan patient records: %w", err)
	}

	records := make([]models.PatientRecord, 0, len(scanned))
	for _, row := range scanned {
		records = append(records, row.toModel())
	}
	return records, nil
}

type recordRow struct {
	ID           string    `db:"id"`
	PatientName  *string   `db:"patient_name"`
	Age          int       `db:"age"`
	Gender       *string   `db:"gender"`
	SymptomsText *string   `db:"symptoms_text"`
	ImageFileURL *string   `db:"image_file_url"`
	VoiceFileURL *string   `db:"voice_file_url"`
	AIDiagnosis  *string   `db:"ai_diagnosis"`
	Confidence   *int      `db:"confidence"`
	TriageLevel  *string   `db:"triage_level"`
	Explanation  *string   `db:"explanation"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r recordRow) toModel() models.PatientRecord {
	rec := models.PatientRecord{
		ID:           models.RecordID(r.ID),
		PatientName:  deref(r.PatientName),
		Age:          r.Age,
		Gender:       deref(r.Gender),
		SymptomsText: deref(r.SymptomsText),
		ImageFileURL: deref(r.ImageFileURL),
		VoiceFileURL: deref(r.VoiceFileURL),
		AIDiagnosis:  deref(r.AIDiagnosis),
		TriageLevel:  models.TriageLevel(deref(r.TriageLevel)),
		Explanation:  deref(r.Explanation),
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if r.Confidence != nil {
		rec.Confidence = *r.Confidence
	}
	return rec
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
