// Package services – ApplicationService
//
// ApplicationService is the admin side of the tracker. It files new
// applications (generating the public tracking ID, the record lifetime and
// the access counters), lists and searches them, produces monthly reports,
// and keeps the Redis local table in step with the document store.
//
// Side effects after a successful insert (local mirror append, event
// publication) are best effort: their failures are logged, never returned.
package services

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/visa-track-backend/internal/domain"
	"github.com/tbourn/visa-track-backend/internal/events"
	"github.com/tbourn/visa-track-backend/internal/lookup"
	"github.com/tbourn/visa-track-backend/internal/repo"
	"github.com/tbourn/visa-track-backend/internal/sources"
)

// ApplicationRepo defines the repository contract required by
// ApplicationService.
type ApplicationRepo interface {
	CreateApplication(ctx context.Context, db *gorm.DB, app *domain.Application) error
	GetApplicationByTrackingID(ctx context.Context, db *gorm.DB, trackingID string) (*domain.Application, error)
	CountApplications(ctx context.Context, db *gorm.DB, f repo.ApplicationFilter) (int64, error)
	ListApplicationsPage(ctx context.Context, db *gorm.DB, f repo.ApplicationFilter, offset, limit int) ([]domain.Application, error)
	ListAllApplications(ctx context.Context, db *gorm.DB) ([]domain.Application, error)
	ApplicationStatusRows(ctx context.Context, db *gorm.DB, year int) ([]repo.StatusRow, error)
}

// LocalMirror is the writable side of the local application table.
type LocalMirror interface {
	Append(ctx context.Context, rows ...sources.LocalRow) error
	ReplaceAll(ctx context.Context, rows []sources.LocalRow) error
}

// maxIDAttempts bounds tracking ID regeneration on collisions.
const maxIDAttempts = 5

// ApplicationService files, lists and reports on applications.
type ApplicationService struct {
	DB   *gorm.DB
	Repo ApplicationRepo

	// Mirror receives every new record; nil disables mirroring.
	Mirror LocalMirror
	// Events is notified of new records; nil means no publication.
	Events events.Publisher

	// RecordTTL is how long a filed record stays visible to the status form.
	RecordTTL time.Duration
	// PageSize is the default admin listing page size.
	PageSize int
	// NameLocale drives applicant name casing.
	NameLocale language.Tag

	Rand lookup.Intn
	Now  func() time.Time
	Log  zerolog.Logger
}

// NewApplicationService returns a service with the desk defaults: one-year
// records, ten rows per page and English name casing.
func NewApplicationService(db *gorm.DB, r ApplicationRepo) *ApplicationService {
	return &ApplicationService{
		DB:         db,
		Repo:       r,
		RecordTTL:  365 * 24 * time.Hour,
		PageSize:   10,
		NameLocale: language.English,
		Now:        time.Now,
		Log:        zerolog.Nop(),
	}
}

// CreateApplicationInput is what an operator submits.
type CreateApplicationInput struct {
	Name            string
	Passport        string
	DOB             string // YYYY-MM-DD
	ApplicationDate string // YYYY-MM-DD; empty means today
	Status          string // one of the domain.Status* values; empty means Under Process
}

// Create validates in and files a new application.
func (s *ApplicationService) Create(ctx context.Context, in CreateApplicationInput) (*domain.Application, error) {
	now := s.now()

	app, err := s.validate(in, now)
	if err != nil {
		return nil, err
	}

	appDate, _ := time.Parse(domain.DateLayout, app.ApplicationDate)
	for attempt := 1; ; attempt++ {
		app.ID = ""
		app.TrackingID = lookup.NewTrackingID(appDate, s.Rand)
		err = s.Repo.CreateApplication(ctx, s.DB, app)
		if !errors.Is(err, repo.ErrDuplicate) {
			break
		}
		if attempt == maxIDAttempts {
			return nil, ErrDuplicateTrackingID
		}
		s.Log.Warn().Str("tracking_id", app.TrackingID).Int("attempt", attempt).Msg("tracking id collision; regenerating")
	}
	if err != nil {
		return nil, err
	}

	s.Log.Info().Str("tracking_id", app.TrackingID).Str("status", app.Status).Msg("application created")

	if s.Mirror != nil {
		if err := s.Mirror.Append(ctx, localRow(*app)); err != nil {
			s.Log.Warn().Err(err).Str("tracking_id", app.TrackingID).Msg("local store append failed")
		}
	}
	if s.Events != nil {
		ev := events.ApplicationCreated{
			TrackingID: app.TrackingID,
			Name:       app.Name,
			Status:     app.Status,
			Date:       app.ApplicationDate,
			CreatedAt:  app.CreatedAt,
		}
		if err := s.Events.ApplicationCreated(ctx, ev); err != nil {
			s.Log.Warn().Err(err).Str("tracking_id", app.TrackingID).Msg("event publication failed")
		}
	}
	return app, nil
}

func (s *ApplicationService) validate(in CreateApplicationInput, now time.Time) (*domain.Application, error) {
	name := normalizeSpace(in.Name)
	passport := strings.ToUpper(strings.TrimSpace(in.Passport))
	dob := strings.TrimSpace(in.DOB)
	appDate := strings.TrimSpace(in.ApplicationDate)

	bad := FieldErrors{}
	if name == "" {
		bad["name"] = FieldRequired
	}
	if passport == "" {
		bad["passport"] = FieldRequired
	}
	switch {
	case dob == "":
		bad["dob"] = FieldRequired
	case !validDate(dob):
		bad["dob"] = FieldInvalid
	}
	if appDate == "" {
		appDate = now.Format(domain.DateLayout)
	} else if !validDate(appDate) {
		bad["application_date"] = FieldInvalid
	}
	status, ok := canonicalStatus(in.Status)
	if !ok {
		bad["status"] = FieldInvalid
	}
	if err := bad.orNil(); err != nil {
		return nil, err
	}

	exp := now.Add(s.recordTTL())
	accessed := now
	return &domain.Application{
		Name:            cases.Title(s.NameLocale).String(name),
		Passport:        passport,
		DOB:             dob,
		ApplicationDate: appDate,
		Status:          status,
		Year:            now.Year(),
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       &exp,
		LastAccessed:    &accessed,
		AccessCount:     0,
	}, nil
}

// Get returns the application with trackingID.
func (s *ApplicationService) Get(ctx context.Context, trackingID string) (*domain.Application, error) {
	app, err := s.Repo.GetApplicationByTrackingID(ctx, s.DB, strings.TrimSpace(trackingID))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrApplicationNotFound
	}
	return app, err
}

// ListPage returns a newest-first page of applications matching query
// (name, passport or tracking ID) and the total match count.
func (s *ApplicationService) ListPage(ctx context.Context, query string, page, pageSize int) ([]domain.Application, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.PageSize
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	f := repo.ApplicationFilter{Query: strings.TrimSpace(query)}

	total, err := s.Repo.CountApplications(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Application{}, 0, nil
	}
	items, err := s.Repo.ListApplicationsPage(ctx, s.DB, f, (page-1)*pageSize, pageSize)
	return items, total, err
}

// MonthlyStats is one row of the monthly report.
type MonthlyStats struct {
	Year         int `json:"year"`
	Month        int `json:"month"`
	Count        int `json:"count"`
	UnderProcess int `json:"under_process"`
	Dispatch     int `json:"dispatch"`
}

// MonthlyReport groups applications by creation month, newest first. A
// zero year covers every year; a zero month covers every month of the
// selected years.
func (s *ApplicationService) MonthlyReport(ctx context.Context, year, month int) ([]MonthlyStats, error) {
	rows, err := s.Repo.ApplicationStatusRows(ctx, s.DB, year)
	if err != nil {
		return nil, err
	}

	type ym struct{ y, m int }
	byMonth := map[ym]*MonthlyStats{}
	for _, r := range rows {
		k := ym{r.CreatedAt.Year(), int(r.CreatedAt.Month())}
		if month != 0 && k.m != month {
			continue
		}
		st, ok := byMonth[k]
		if !ok {
			st = &MonthlyStats{Year: k.y, Month: k.m}
			byMonth[k] = st
		}
		st.Count++
		switch r.Status {
		case domain.StatusUnderProcess:
			st.UnderProcess++
		case domain.StatusDispatch:
			st.Dispatch++
		}
	}

	out := make([]MonthlyStats, 0, len(byMonth))
	for _, st := range byMonth {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	return out, nil
}

// SyncLocal rewrites the local table from the document store and returns
// the number of rows written.
func (s *ApplicationService) SyncLocal(ctx context.Context) (int, error) {
	if s.Mirror == nil {
		return 0, ErrMirrorUnavailable
	}
	apps, err := s.Repo.ListAllApplications(ctx, s.DB)
	if err != nil {
		return 0, err
	}
	rows := make([]sources.LocalRow, len(apps))
	for i, a := range apps {
		rows[i] = localRow(a)
	}
	if err := s.Mirror.ReplaceAll(ctx, rows); err != nil {
		return 0, err
	}
	s.Log.Info().Int("rows", len(rows)).Msg("local store synced")
	return len(rows), nil
}

func (s *ApplicationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *ApplicationService) recordTTL() time.Duration {
	if s.RecordTTL > 0 {
		return s.RecordTTL
	}
	return 365 * 24 * time.Hour
}

func localRow(a domain.Application) sources.LocalRow {
	return sources.LocalRow{
		Name:       a.Name,
		Passport:   a.Passport,
		TrackingID: a.TrackingID,
		DOB:        a.DOB,
		Date:       a.ApplicationDate,
		Status:     a.Status,
		Created:    a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// canonicalStatus accepts the stored status names case-insensitively and
// defaults blank input to Under Process.
func canonicalStatus(raw string) (string, bool) {
	raw = normalizeSpace(raw)
	if raw == "" {
		return domain.StatusUnderProcess, true
	}
	for _, s := range []string{domain.StatusUnderProcess, domain.StatusDispatch, domain.StatusApproved, domain.StatusRejected} {
		if strings.EqualFold(raw, s) {
			return s, true
		}
	}
	return "", false
}

func validDate(s string) bool {
	_, err := time.Parse(domain.DateLayout, s)
	return err == nil
}

// normalizeSpace trims whitespace and collapses runs of it to one space.
func normalizeSpace(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
