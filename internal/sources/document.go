package sources

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/visa-track-backend/internal/lookup"
	"github.com/tbourn/visa-track-backend/internal/repo"
)

// Document reads admin-created applications from the relational store and
// records each successful lookup.
type Document struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDocument(db *gorm.DB) *Document {
	return &Document{db: db, now: time.Now}
}

func (d *Document) Name() string { return "document" }

func (d *Document) Find(ctx context.Context, trackingID, dob string) (*lookup.RawRecord, error) {
	app, err := repo.GetApplicationByTrackingID(ctx, d.db, trackingID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(app.DOB) != dob {
		return nil, nil
	}
	return &lookup.RawRecord{
		Ref:        app.ID,
		TrackingID: app.TrackingID,
		DOB:        app.DOB,
		Name:       app.Name,
		Status:     app.Status,
		Date:       app.ApplicationDate,
		ExpiresAt:  app.ExpiresAt,
	}, nil
}

// TouchAccess bumps access_count and last_accessed for the row ref.
func (d *Document) TouchAccess(ctx context.Context, ref string) error {
	return repo.TouchApplication(ctx, d.db, ref, d.now())
}

var (
	_ lookup.Source        = (*Document)(nil)
	_ lookup.AccessTracker = (*Document)(nil)
)
