package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Skufu/GoTriage/internal/models"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrPersistFailed  = errors.New("record could not be persisted")
	errNoRemote       = errors.New("remote database not configured")
)

// Repository is one persistence backend for patient records.
type Repository interface {
	Name() string
	Insert(ctx context.Context, record models.PatientRecord) (models.PatientRecord, error)
	FindByID(ctx context.Context, id string) (models.PatientRecord, error)
	List(ctx context.Context) ([]models.PatientRecord, error)
}

// Chain writes to the remote repository when one is configured and falls back
// to the local log otherwise. Reads consult both.
type Chain struct {
	remote Repository
	local  Repository
	log    *zap.Logger
	newID  func() string
	now    func() time.Time
}

// NewChain builds the fallback chain. remote may be nil when no database is
// configured or reachable.
func NewChain(remote Repository, local Repository, log *zap.Logger) *Chain {
	return &Chain{
		remote: remote,
		local:  local,
		log:    log,
		newID:  uuid.NewString,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (c *Chain) HasRemote() bool {
	return c.remote != nil
}

// Insert persists the record exactly once. The returned record carries the id
// and timestamp assigned by whichever backend accepted it. ErrPersistFailed is
// returned only when every backend failed.
func (c *Chain) Insert(ctx context.Context, record models.PatientRecord) (models.PatientRecord, error) {
	remoteErr := errNoRemote
	if c.remote != nil {
		saved, err := c.remote.Insert(ctx, record)
		if err == nil && saved.ID != "" {
			c.log.Debug("record stored", zap.String("backend", c.remote.Name()), zap.String("record_id", saved.ID.String()))
			return saved, nil
		}
		if err == nil {
			err = errors.New("remote insert returned no id")
		}
		remoteErr = err
		c.log.Warn("remote insert failed, falling back to local store",
			zap.String("backend", c.remote.Name()),
			zap.Error(err),
		)
	}

	record.ID = models.RecordID(c.newID())
	record.CreatedAt = c.now()
	saved, err := c.local.Insert(ctx, record)
	if err != nil {
		c.log.Error("local append failed", zap.Error(err))
		return models.PatientRecord{}, fmt.Errorf("%w: %w", ErrPersistFailed, errors.Join(remoteErr, err))
	}

	c.log.Info("record stored locally",
		zap.String("backend", c.local.Name()),
		zap.String("record_id", saved.ID.String()),
	)
	return saved, nil
}

// FindByID looks in the remote repository first and then in the local log.
func (c *Chain) FindByID(ctx context.Context, id string) (models.PatientRecord, error) {
	if id == "" {
		return models.PatientRecord{}, ErrRecordNotFound
	}

	if c.remote != nil {
		rec, err := c.remote.FindByID(ctx, id)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrRecordNotFound) {
			c.log.Warn("remote lookup failed, checking local store", zap.String("record_id", id), zap.Error(err))
		}
	}

	rec, err := c.local.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return models.PatientRecord{}, ErrRecordNotFound
		}
		return models.PatientRecord{}, fmt.Errorf("local lookup: %w", err)
	}
	return rec, nil
}

// List merges both backends, newest first. A failing remote only drops its
// share of the records.
func (c *Chain) List(ctx context.Context) ([]models.PatientRecord, error) {
	records := []models.PatientRecord{}
	if c.remote != nil {
		remote, err := c.remote.List(ctx)
		if err != nil {
			c.log.Warn("remote list failed", zap.Error(err))
		} else {
			records = append(records, remote...)
		}
	}

	local, err := c.local.List(ctx)
	if err != nil {
		c.log.Warn("local list failed", zap.Error(err))
	}
	records = append(records, local...)

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}
