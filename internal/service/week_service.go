package service

import (
	"alcyxob/workout-tracker/internal/calendar"
	"alcyxob/workout-tracker/internal/domain"
	"alcyxob/workout-tracker/internal/metrics"
	"alcyxob/workout-tracker/internal/reconcile"
	"alcyxob/workout-tracker/internal/repository"
	"alcyxob/workout-tracker/internal/storage"
	"alcyxob/workout-tracker/internal/weekly"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// --- Error Definitions ---
var (
	ErrWeekNotFound      = errors.New("week not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrSnapshotsDisabled = errors.New("snapshot storage is not configured")
	ErrValidationFailed  = errors.New("validation failed")
)

// Operation names, used for logging, metrics and snapshot keys.
const (
	OpGet       = "get"
	OpNormalize = "normalize"
	OpRepair    = "repair"
	OpRebuild   = "rebuild"
	OpDedupe    = "dedupe"
	OpRestore   = "restore"
	OpSettings  = "settings"
	OpComment   = "comment"
	OpLog       = "log_session"
	OpDelete    = "delete_session"
)

// WeekView is a week as the presentation layer should render it.
type WeekView struct {
	Document   *domain.WeeklyDocument `json:"document"`
	Persisted  bool                   `json:"persisted"`  // false when a default was synthesized
	Normalized bool                   `json:"normalized"` // true when the stored order was repaired in memory
	Warnings   []string               `json:"warnings,omitempty"`
}

// RepairOutcome reports what a repair operation did.
type RepairOutcome struct {
	Operation   string                 `json:"operation"`
	Document    *domain.WeeklyDocument `json:"document"`
	Changed     bool                   `json:"changed"`
	Written     bool                   `json:"written"`
	FellBack    bool                   `json:"fellBack,omitempty"` // repair fell back to a rebuild
	SnapshotKey string                 `json:"snapshotKey,omitempty"`
	Reconcile   *reconcile.Result      `json:"reconcile,omitempty"`
	Deleted     []string               `json:"deleted,omitempty"`
	Warnings    []string               `json:"warnings,omitempty"`
}

// RebuildOptions tunes RebuildWeek and DedupeWeek.
type RebuildOptions struct {
	Policy    *reconcile.Policy   // nil: service default (rebuild) or cleanup policy (dedupe)
	Overrides domain.WeekSettings // non-nil fields replace the prior document's settings
	DryRun    bool
}

// LogSessionInput is one completed session reported by the logging flow.
type LogSessionInput struct {
	DateISO       string   `json:"dateISO"`
	SessionTypes  []string `json:"sessionTypes"`
	CompletedAt   int64    `json:"completedAt"` // Epoch millis; zero means now
	Manual        bool     `json:"manual"`
	ExerciseCount *int     `json:"exerciseCount,omitempty"`
}

// LogSessionResult is the stored event and the week it was folded into.
type LogSessionResult struct {
	Event    domain.SessionEvent    `json:"event"`
	Document *domain.WeeklyDocument `json:"document"`
	Rebuilt  bool                   `json:"rebuilt"` // the week had to be rebuilt from the log
}

// WeekService coordinates the weekly model, the reconciliation engine and the repositories.
// Every write is a single full-document replace; concurrent writers follow last-writer-wins.
type WeekService interface {
	GetWeek(ctx context.Context, userID, weekKey string) (*WeekView, error)
	InspectWeek(ctx context.Context, userID, weekKey string) (*weekly.Report, error)
	NormalizeWeek(ctx context.Context, userID, weekKey string, dryRun bool) (*RepairOutcome, error)
	RepairWeek(ctx context.Context, userID, weekKey string, dryRun bool) (*RepairOutcome, error)
	RebuildWeek(ctx context.Context, userID, weekKey string, opts RebuildOptions) (*RepairOutcome, error)
	DedupeWeek(ctx context.Context, userID, weekKey string, opts RebuildOptions) (*RepairOutcome, error)
	UpdateSettings(ctx context.Context, userID, weekKey string, settings domain.WeekSettings) (*domain.WeeklyDocument, error)
	SetComment(ctx context.Context, userID, weekKey, dateISO, workoutType, text string) (*domain.WeeklyDocument, error)

	LogSession(ctx context.Context, userID string, input LogSessionInput) (*LogSessionResult, error)
	ListSessions(ctx context.Context, userID, fromISO, toISO string) ([]domain.SessionEvent, error)
	DeleteSession(ctx context.Context, userID, sessionID string) (*RepairOutcome, error)

	ListSnapshots(ctx context.Context, userID, weekKey string) ([]storage.SnapshotInfo, error)
	RestoreSnapshot(ctx context.Context, userID, weekKey, key string) (*domain.WeeklyDocument, error)
	SnapshotURL(ctx context.Context, userID, weekKey, key string) (string, error)
}

// --- Service Implementation ---

// weekService implements the WeekService interface.
type weekService struct {
	weeklyRepo  repository.WeeklyRepository
	sessionRepo repository.SessionRepository
	snapshots   storage.SnapshotStore // nil disables snapshots
	engine      *reconcile.Engine
	defaults    domain.WeekSettings
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	now         func() time.Time
}

// NewWeekService creates a new instance of weekService.
func NewWeekService(
	weeklyRepo repository.WeeklyRepository,
	sessionRepo repository.SessionRepository,
	snapshots storage.SnapshotStore,
	engine *reconcile.Engine,
	defaults domain.WeekSettings,
	m *metrics.Metrics,
	logger zerolog.Logger,
) WeekService {
	if m == nil {
		m = metrics.New()
	}
	return &weekService{
		weeklyRepo:  weeklyRepo,
		sessionRepo: sessionRepo,
		snapshots:   snapshots,
		engine:      engine,
		defaults:    defaults,
		metrics:     m,
		logger:      logger.With().Str("component", "service.week").Logger(),
		now:         time.Now,
	}
}

func (s *weekService) observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordOperation(op, status, time.Since(start).Seconds())
}

func validateWeekKey(weekKey string) error {
	if !calendar.IsWeekKey(weekKey) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidWeekKey, weekKey)
	}
	return nil
}

// load fetches the stored week. A missing week is not an error: persisted is false.
func (s *weekService) load(ctx context.Context, userID, weekKey string) (doc *domain.WeeklyDocument, persisted bool, err error) {
	if userID == "" {
		return nil, false, fmt.Errorf("%w: user ID is required", ErrValidationFailed)
	}
	if err := validateWeekKey(weekKey); err != nil {
		return nil, false, err
	}
	doc, err = s.weeklyRepo.Get(ctx, userID, weekKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return doc, true, nil
}

// newWeek builds the default document for a week that has never been written.
// Settings and the week number continue from the user's latest earlier week.
func (s *weekService) newWeek(ctx context.Context, userID, weekKey string) (*domain.WeeklyDocument, error) {
	seed := s.defaults
	weekNumber := 1

	latest, err := s.weeklyRepo.Latest(ctx, userID, weekKey)
	switch {
	case err == nil:
		seed = latest.Settings()
		from, fromErr := calendar.ParseISODate(latest.WeekOfISO, time.UTC)
		to, toErr := calendar.ParseISODate(weekKey, time.UTC)
		if fromErr == nil && toErr == nil && latest.WeekNumber > 0 {
			weekNumber = latest.WeekNumber + calendar.WeeksBetween(from, to)
		}
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, err
	}

	doc, err := weekly.DefaultWeekly(weekKey, seed)
	if err != nil {
		return nil, err
	}
	doc.UserID = userID
	doc.WeekNumber = weekNumber
	return doc, nil
}

// current returns the week ready for a read-modify-write: stored and
// normalized, or freshly defaulted. Normalization errors are returned as is.
func (s *weekService) current(ctx context.Context, userID, weekKey string) (doc *domain.WeeklyDocument, persisted bool, err error) {
	doc, persisted, err = s.load(ctx, userID, weekKey)
	if err != nil {
		return nil, false, err
	}
	if !persisted {
		doc, err = s.newWeek(ctx, userID, weekKey)
		return doc, false, err
	}
	if weekly.IsCanonicalOrder(doc) {
		return doc, true, nil
	}
	normalized, err := weekly.NormalizeOrder(doc)
	if err != nil {
		s.metrics.RecordNormalizeFailure()
		return nil, true, err
	}
	return normalized, true, nil
}

// write replaces the stored week, snapshotting prior first when requested.
func (s *weekService) write(ctx context.Context, userID, weekKey string, prior, doc *domain.WeeklyDocument, reason string) (string, error) {
	snapshotKey := ""
	if prior != nil && s.snapshots != nil {
		body, err := json.Marshal(prior)
		if err != nil {
			return "", err
		}
		snapshotKey = storage.SnapshotKey(userID, weekKey, reason, s.now())
		if err := s.snapshots.PutSnapshot(ctx, snapshotKey, body); err != nil {
			s.metrics.RecordSnapshot("error")
			// Never replace a week we could not archive.
			return "", fmt.Errorf("snapshot before %s: %w", reason, err)
		}
		s.metrics.RecordSnapshot("ok")
	}

	doc.UserID = userID
	doc.WeekOfISO = weekKey
	doc.UpdatedAt = s.now().UTC()
	if err := s.weeklyRepo.Set(ctx, userID, weekKey, doc); err != nil {
		return snapshotKey, err
	}
	return snapshotKey, nil
}

func (s *weekService) metadataWarnings(doc *domain.WeeklyDocument) []string {
	err := weekly.CheckTypeMetadata(doc)
	if err == nil {
		return nil
	}
	s.logger.Warn().Err(err).Str("user_id", doc.UserID).Str("week", doc.WeekOfISO).Msg("incomplete type metadata")
	return []string{err.Error()}
}

// GetWeek returns the week for display. Absent weeks come back as unsaved defaults.
func (s *weekService) GetWeek(ctx context.Context, userID, weekKey string) (view *WeekView, err error) {
	defer func(start time.Time) { s.observe(OpGet, start, err) }(time.Now())

	doc, persisted, err := s.load(ctx, userID, weekKey)
	if err != nil {
		return nil, err
	}
	view = &WeekView{Persisted: persisted}
	switch {
	case !persisted:
		if doc, err = s.newWeek(ctx, userID, weekKey); err != nil {
			return nil, err
		}
	case !weekly.IsCanonicalOrder(doc):
		normalized, nErr := weekly.NormalizeOrder(doc)
		if nErr != nil {
			s.metrics.RecordNormalizeFailure()
			s.logger.Warn().Err(nErr).Str("user_id", userID).Str("week", weekKey).Msg("stored week cannot be normalized")
			return nil, nErr
		}
		doc = normalized
		view.Normalized = true
	}
	view.Document = doc
	view.Warnings = s.metadataWarnings(doc)
	return view, nil
}

// InspectWeek reports invariant violations of the stored week without changing it.
func (s *weekService) InspectWeek(ctx context.Context, userID, weekKey string) (report *weekly.Report, err error) {
	doc, persisted, err := s.load(ctx, userID, weekKey)
	if err != nil {
		return nil, err
	}
	if !persisted {
		return nil, ErrWeekNotFound
	}
	return weekly.Inspect(doc), nil
}

// NormalizeWeek repairs the day order of the stored week in place. When the
// days belong to another week it fails and leaves the document unmodified.
func (s *weekService) NormalizeWeek(ctx context.Context, userID, weekKey string, dryRun bool) (out *RepairOutcome, err error) {
	defer func(start time.Time) { s.observe(OpNormalize, start, err) }(time.Now())

	doc, persisted, err := s.load(ctx, userID, weekKey)
	if err != nil {
		return nil, err
	}
	if !persisted {
		return nil, ErrWeekNotFound
	}

	out = &RepairOutcome{Operation: OpNormalize, Document: doc}
	if weekly.IsCanonicalOrder(doc) {
		return out, nil
	}
	normalized, err := weekly.NormalizeOrder(doc)
	if err != nil {
		s.metrics.RecordNormalizeFailure()
		return nil, err
	}
	out.Document = normalized
	out.Changed = true
	if dryRun {
		return out, nil
	}
	if out.SnapshotKey, err = s.write(ctx, userID, weekKey, doc, normalized, OpNormalize); err != nil {
		return nil, err
	}
	out.Written = true
	s.logger.Info().Str("user_id", userID).Str("week", weekKey).Str("snapshot", out.SnapshotKey).Msg("week normalized")
	return out, nil
}

// RepairWeek normalizes the stored week, falling back to a full rebuild from
// the session log when the stored days cannot be trusted.
func (s *weekService) RepairWeek(ctx context.Context, userID, weekKey string, dryRun bool) (out *RepairOutcome, err error) {
	defer func(start time.Time) { s.observe(OpRepair, start, err) }(time.Now())

	out, err = s.NormalizeWeek(ctx, userID, weekKey, dryRun)
	switch {
	case err == nil:
		out.Operation = OpRepair
		return out, nil
	case errors.Is(err, ErrWeekNotFound),
		errors.Is(err, domain.ErrOutOfRangeDate),
		errors.Is(err, domain.ErrMalformedWeek):
		s.logger.Warn().Err(err).Str("user_id", userID).Str("week", weekKey).Msg("normalize failed, rebuilding from session log")
	default:
		return nil, err
	}

	out, err = s.RebuildWeek(ctx, userID, weekKey, RebuildOptions{DryRun: dryRun})
	if err != nil {
		return nil, err
	}
	out.Operation = OpRepair
	out.FellBack = true
	return out, nil
}

// RebuildWeek replaces the week with one reconstructed from the session log.
func (s *weekService) RebuildWeek(ctx context.Context, userID, weekKey string, opts RebuildOptions) (out *RepairOutcome, err error) {
	defer func(start time.Time) { s.observe(OpRebuild, start, err) }(time.Now())
	return s.rebuild(ctx, userID, weekKey, OpRebuild, s.engine, opts, false)
}

// DedupeWeek rebuilds the week with the cleanup policy and deletes the
// discarded events from the session log.
func (s *weekService) DedupeWeek(ctx context.Context, userID, weekKey string, opts RebuildOptions) (out *RepairOutcome, err error) {
	defer func(start time.Time) { s.observe(OpDedupe, start, err) }(time.Now())
	engine := s.engine
	if opts.Policy == nil {
		engine = engine.WithPolicy(reconcile.Policy{
			BurstWindow:       s.engine.Policy().BurstWindow,
			CollapseSupersets: true,
		})
	}
	return s.rebuild(ctx, userID, weekKey, OpDedupe, engine, opts, true)
}

func (s *weekService) rebuild(ctx context.Context, userID, weekKey, op string, engine *reconcile.Engine, opts RebuildOptions, prune bool) (*RepairOutcome, error) {
	if opts.Policy != nil {
		engine = engine.WithPolicy(*opts.Policy)
	}

	stored, persisted, err := s.load(ctx, userID, weekKey)
	if err != nil {
		return nil, err
	}
	prior := stored
	if !persisted {
		if prior, err = s.newWeek(ctx, userID, weekKey); err != nil {
			return nil, err
		}
	}

	to, err := calendar.AddDaysISO(weekKey, calendar.DaysPerWeek-1)
	if err != nil {
		return nil, err
	}
	events, err := s.sessionRepo.ListRange(ctx, userID, weekKey, to)
	if err != nil {
		return nil, err
	}

	res, err := engine.Reconcile(events, weekKey, prior, opts.Overrides)
	if err != nil {
		return nil, err
	}
	s.recordReconcile(userID, weekKey, res)

	doc := res.Document
	doc.UserID = userID
	out := &RepairOutcome{
		Operation: op,
		Document:  doc,
		Changed:   true,
		Reconcile: res,
		Warnings:  s.metadataWarnings(doc),
	}
	for _, u := range res.Unplaceable {
		out.Warnings = append(out.Warnings, u.Err().Error())
	}
	if opts.DryRun {
		return out, nil
	}

	if prune {
		for _, id := range res.DiscardedIDs() {
			if err := s.sessionRepo.Delete(ctx, userID, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("delete discarded session %s: %w", id, err)
			}
			out.Deleted = append(out.Deleted, id)
		}
	}

	var snapshotOf *domain.WeeklyDocument
	if persisted {
		snapshotOf = stored
	}
	if out.SnapshotKey, err = s.write(ctx, userID, weekKey, snapshotOf, doc, op); err != nil {
		return nil, err
	}
	out.Written = true
	s.logger.Info().
		Str("user_id", userID).
		Str("week", weekKey).
		Str("operation", op).
		Int("retained", len(res.Retained)).
		Int("discarded", len(res.Discarded)).
		Int("deleted", len(out.Deleted)).
		Int("unplaceable", len(res.Unplaceable)).
		Msg("week rebuilt from session log")
	return out, nil
}

func (s *weekService) recordReconcile(userID, weekKey string, res *reconcile.Result) {
	dups, supers := 0, 0
	for _, d := range res.Discarded {
		if d.Rule == reconcile.RuleSuperset {
			supers++
		} else {
			dups++
		}
	}
	s.metrics.RecordDiscarded(reconcile.RuleDuplicate, dups)
	s.metrics.RecordDiscarded(reconcile.RuleSuperset, supers)
	s.metrics.RecordUnplaceable(len(res.Unplaceable))
	for _, u := range res.Unplaceable {
		s.logger.Warn().Str("user_id", userID).Str("week", weekKey).Str("session_id", u.Event.ID).Str("reason", u.Reason).Msg("unplaceable session")
	}
}

// UpdateSettings replaces the benchmarks, custom types and categories of a week.
func (s *weekService) UpdateSettings(ctx context.Context, userID, weekKey string, settings domain.WeekSettings) (doc *domain.WeeklyDocument, err error) {
	defer func(start time.Time) { s.observe(OpSettings, start, err) }(time.Now())

	for t, target := range settings.Benchmarks {
		if strings.TrimSpace(t) == "" || target < 0 {
			return nil, fmt.Errorf("%w: benchmark %q must be a non-negative target", ErrValidationFailed, t)
		}
	}
	doc, _, err = s.current(ctx, userID, weekKey)
	if err != nil {
		return nil, err
	}
	weekly.ApplySettings(doc, settings)
	if _, err = s.write(ctx, userID, weekKey, nil, doc, OpSettings); err != nil {
		return nil, err
	}
	s.metadataWarnings(doc)
	return doc, nil
}

// SetComment stores a note for one type on one day. Empty text removes the note.
func (s *weekService) SetComment(ctx context.Context, userID, weekKey, dateISO, workoutType, text string) (doc *domain.WeeklyDocument, err error) {
	defer func(start time.Time) { s.observe(OpComment, start, err) }(time.Now())

	if strings.TrimSpace(workoutType) == "" {
		return nil, fmt.Errorf("%w: workout type is required", ErrValidationFailed)
	}
	idx := calendar.DayIndex(weekKey, dateISO)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s is not in week %s", domain.ErrOutOfRangeDate, dateISO, weekKey)
	}
	doc, _, err = s.current(ctx, userID, weekKey)
	if err != nil {
		return nil, err
	}
	day := &doc.Days[idx]
	if day.Comments == nil {
		day.Comments = map[string]string{}
	}
	if text == "" {
		delete(day.Comments, workoutType)
	} else {
		day.Comments[workoutType] = text
	}
	if _, err = s.write(ctx, userID, weekKey, nil, doc, OpComment); err != nil {
		return nil, err
	}
	return doc, nil
}
