package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/golf-qa/backend/internal/embedding"
	"github.com/golf-qa/backend/internal/freshness"
	"github.com/golf-qa/backend/internal/ingestion"
	"github.com/golf-qa/backend/internal/metrics"
	"github.com/golf-qa/backend/internal/storage/models"
	"github.com/golf-qa/backend/pkg/apperrors"
	"github.com/golf-qa/backend/pkg/logger"
)

// DefaultCron fires at 02:00 on the first day of every month.
const DefaultCron = "0 2 1 * *"

const defaultInterval = 30 * 24 * time.Hour

var ErrAlreadyRunning = errors.New("update already running")

type Store interface {
	ListPassages(ctx context.Context) ([]models.Passage, error)
	UpsertPassage(ctx context.Context, p *models.Passage) error
	TouchPassage(ctx context.Context, id string, at time.Time) error
	DeletePassagesExcept(ctx context.Context, keep []string) (int, error)
	CountPassages(ctx context.Context) (int, error)
	UpsertCourse(ctx context.Context, course *models.Course) error
	UpsertFreshness(ctx context.Context, r *models.FreshnessRecord) error
	GetFreshness(ctx context.Context, dataType string) (*models.FreshnessRecord, error)
}

type UpdateResult struct {
	Success           bool          `json:"success"`
	PassagesUpdated   int           `json:"passages_updated"`
	PassagesUnchanged int           `json:"passages_unchanged"`
	PassagesRemoved   int           `json:"passages_removed"`
	PassagesFailed    int           `json:"passages_failed"`
	CoursesUpdated    int           `json:"courses_updated"`
	Error             string        `json:"error,omitempty"`
	Duration          time.Duration `json:"duration"`
	NextUpdate        time.Time     `json:"next_update"`
}

// DataStatus is the freshness of one data type.
type DataStatus struct {
	DataType string                  `json:"data_type"`
	Level    freshness.Level         `json:"level"`
	Color    string                  `json:"color"`
	AgeDays  int                     `json:"age_days"`
	Message  string                  `json:"message"`
	Record   *models.FreshnessRecord `json:"-"`
}

// Updater refreshes rule passages and courses from an ingestion source.
type Updater struct {
	store     Store
	source    ingestion.Source
	processor *ingestion.Processor
	embedder  embedding.Provider
	now       func() time.Time

	running  sync.Mutex
	mu       sync.RWMutex
	schedule cron.Schedule
}

func NewUpdater(store Store, source ingestion.Source, processor *ingestion.Processor, embedder embedding.Provider) *Updater {
	return &Updater{
		store:     store,
		source:    source,
		processor: processor,
		embedder:  embedder,
		now:       time.Now,
	}
}

// Handle controls a running schedule.
type Handle struct {
	cron     *cron.Cron
	schedule cron.Schedule
}

// Stop halts the schedule and waits for a running update to finish.
func (h *Handle) Stop() {
	<-h.cron.Stop().Done()
}

func (h *Handle) Next() time.Time {
	return h.schedule.Next(time.Now())
}

// Schedule runs RunOnce on a standard five field cron expression. A firing that overlaps a
// running update is skipped.
func (u *Updater) Schedule(expr string) (*Handle, error) {
	if expr == "" {
		expr = DefaultCron
	}

	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", apperrors.ErrInvalidCron, expr, err)
	}

	c := cron.New(cron.WithLogger(cronLogger{}), cron.WithChain(cron.SkipIfStillRunning(cronLogger{})))
	c.Schedule(schedule, cron.FuncJob(func() {
		result := u.RunOnce(context.Background())
		if !result.Success {
			logger.Warn("Scheduled update finished with errors", zap.String("error", result.Error))
		}
	}))

	u.mu.Lock()
	u.schedule = schedule
	u.mu.Unlock()

	c.Start()

	handle := &Handle{cron: c, schedule: schedule}
	logger.Info("Update scheduler started", zap.String("cron", expr), zap.Time("next_run", handle.Next()))
	return handle, nil
}

// RunOnce refreshes rules, then courses. Courses are refreshed even when rules fail.
func (u *Updater) RunOnce(ctx context.Context) *UpdateResult {
	if !u.running.TryLock() {
		return &UpdateResult{Error: ErrAlreadyRunning.Error(), NextUpdate: u.nextUpdate(u.now())}
	}
	defer u.running.Unlock()

	start := u.now()
	logger.Info("Data update started", zap.String("source", u.source.Name()))

	result := &UpdateResult{}
	var errs []error

	if err := u.updateRules(ctx, result); err != nil {
		errs = append(errs, err)
	}
	if err := u.updateCourses(ctx, result); err != nil {
		errs = append(errs, err)
	}

	if count, err := u.store.CountPassages(ctx); err == nil {
		metrics.PassagesStored.Set(float64(count))
	}

	result.Success = len(errs) == 0
	if err := errors.Join(errs...); err != nil {
		result.Error = err.Error()
	}
	result.Duration = u.now().Sub(start)
	result.NextUpdate = u.nextUpdate(u.now())

	logger.Info("Data update finished",
		zap.Bool("success", result.Success),
		zap.Int("passages_updated", result.PassagesUpdated),
		zap.Int("passages_unchanged", result.PassagesUnchanged),
		zap.Int("passages_removed", result.PassagesRemoved),
		zap.Int("passages_failed", result.PassagesFailed),
		zap.Int("courses_updated", result.CoursesUpdated),
		zap.Duration("duration", result.Duration),
	)

	return result
}

func (u *Updater) updateRules(ctx context.Context, result *UpdateResult) error {
	record := u.begin(ctx, models.DataTypeRules)

	rules, err := u.source.FetchRules(ctx)
	if err != nil {
		err = fmt.Errorf("%w: failed to fetch rules: %w", apperrors.ErrSchedulerRun, err)
		u.finish(ctx, record, models.StatusFailed, 0, err)
		return err
	}

	existing, err := u.existingPassages(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", apperrors.ErrSchedulerRun, err)
		u.finish(ctx, record, models.StatusFailed, 0, err)
		return err
	}

	model := u.embedder.Name()
	var keep []string
	var failures []error

	for _, rule := range rules {
		for _, passage := range u.processor.Passages(rule) {
			keep = append(keep, passage.ID)

			if err := u.storePassage(ctx, passage, existing[passage.ID], model, result); err != nil {
				logger.Warn("Failed to refresh passage", zap.String("passage_id", passage.ID), zap.Error(err))
				failures = append(failures, err)
				result.PassagesFailed++
			}
		}
	}

	if len(failures) > 0 {
		err := fmt.Errorf("%w: %d of %d passages failed: %w", apperrors.ErrSchedulerRun, len(failures), len(keep), failures[0])
		u.finish(ctx, record, models.StatusPartial, result.PassagesUpdated, err)
		return err
	}

	removed, err := u.store.DeletePassagesExcept(ctx, keep)
	result.PassagesRemoved = removed
	if err != nil {
		err = fmt.Errorf("%w: %w", apperrors.ErrSchedulerRun, err)
		u.finish(ctx, record, models.StatusPartial, result.PassagesUpdated, err)
		return err
	}

	u.finish(ctx, record, models.StatusSuccess, result.PassagesUpdated, nil)
	return nil
}

// storePassage re-embeds a passage only when its content or the embedding model changed.
func (u *Updater) storePassage(ctx context.Context, passage models.Passage, previous *models.Passage, model string, result *UpdateResult) error {
	now := u.now()

	if previous != nil && previous.ContentHash == passage.ContentHash && previous.EmbeddingModel == model && len(previous.Embedding) > 0 {
		if err := u.store.TouchPassage(ctx, passage.ID, now); err != nil {
			return err
		}
		result.PassagesUnchanged++
		return nil
	}

	vec, err := u.embedder.Embed(ctx, passage.Text)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrProviderFailure, err)
	}

	passage.Embedding = vec
	passage.EmbeddingModel = model
	passage.LastRefreshed = now
	if err := u.store.UpsertPassage(ctx, &passage); err != nil {
		return err
	}

	result.PassagesUpdated++
	return nil
}

func (u *Updater) existingPassages(ctx context.Context) (map[string]*models.Passage, error) {
	passages, err := u.store.ListPassages(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Passage, len(passages))
	for i := range passages {
		byID[passages[i].ID] = &passages[i]
	}
	return byID, nil
}

func (u *Updater) updateCourses(ctx context.Context, result *UpdateResult) error {
	record := u.begin(ctx, models.DataTypeCourses)

	courses, err := u.source.FetchCourses(ctx)
	if err != nil {
		err = fmt.Errorf("%w: failed to fetch courses: %w", apperrors.ErrSchedulerRun, err)
		u.finish(ctx, record, models.StatusFailed, 0, err)
		return err
	}

	var failures []error
	for i := range courses {
		courses[i].LastUpdated = u.now()
		if err := u.store.UpsertCourse(ctx, &courses[i]); err != nil {
			logger.Warn("Failed to store course", zap.String("name", courses[i].Name), zap.Error(err))
			failures = append(failures, err)
			continue
		}
		result.CoursesUpdated++
	}

	if len(failures) > 0 {
		status := models.StatusPartial
		if result.CoursesUpdated == 0 {
			status = models.StatusFailed
		}
		err := fmt.Errorf("%w: %d of %d courses failed: %w", apperrors.ErrSchedulerRun, len(failures), len(courses), failures[0])
		u.finish(ctx, record, status, result.CoursesUpdated, err)
		return err
	}

	u.finish(ctx, record, models.StatusSuccess, result.CoursesUpdated, nil)
	return nil
}

// begin marks a data type in progress, keeping its last success time.
func (u *Updater) begin(ctx context.Context, dataType string) *models.FreshnessRecord {
	record, err := u.store.GetFreshness(ctx, dataType)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("Failed to load freshness record", zap.String("data_type", dataType), zap.Error(err))
		}
		record = &models.FreshnessRecord{DataType: dataType}
	}

	record.LastAttempt = u.now()
	record.Status = models.StatusInProgress
	record.ErrorMessage = ""
	if err := u.store.UpsertFreshness(ctx, record); err != nil {
		logger.Warn("Failed to mark update in progress", zap.String("data_type", dataType), zap.Error(err))
	}
	return record
}

func (u *Updater) finish(ctx context.Context, record *models.FreshnessRecord, status string, updated int, runErr error) {
	now := u.now()

	record.Status = status
	record.RecordsUpdated = updated
	record.NextScheduled = u.nextUpdate(now)
	record.ErrorMessage = ""
	if runErr != nil {
		record.ErrorMessage = runErr.Error()
	}
	if status == models.StatusSuccess {
		record.LastSuccess = now
	}

	if err := u.store.UpsertFreshness(ctx, record); err != nil {
		logger.Error("Failed to store freshness record", zap.String("data_type", record.DataType), zap.Error(err))
	}

	metrics.UpdateRuns.WithLabelValues(record.DataType, status).Inc()
	if runErr != nil {
		logger.Error("Data update failed", zap.String("data_type", record.DataType), zap.String("status", status), zap.Error(runErr))
	}
}

func (u *Updater) nextUpdate(now time.Time) time.Time {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if u.schedule != nil {
		return u.schedule.Next(now)
	}
	return now.Add(defaultInterval)
}

// InitializeData runs an update when the store holds no passages. It returns nil when the
// store is already populated.
func (u *Updater) InitializeData(ctx context.Context) (*UpdateResult, error) {
	count, err := u.store.CountPassages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count passages: %w", err)
	}
	metrics.PassagesStored.Set(float64(count))
	if count > 0 {
		logger.Info("Content store already populated", zap.Int("passages", count))
		return nil, nil
	}

	logger.Info("Content store empty, loading initial data")
	return u.RunOnce(ctx), nil
}

func (u *Updater) Status(ctx context.Context, now time.Time) ([]DataStatus, error) {
	var statuses []DataStatus

	for _, dataType := range []string{models.DataTypeRules, models.DataTypeCourses} {
		record, err := u.store.GetFreshness(ctx, dataType)
		if err != nil {
			if !errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("failed to get freshness for %s: %w", dataType, err)
			}
			record = &models.FreshnessRecord{DataType: dataType}
		}

		level := freshness.Classify(record.LastSuccess, now)
		statuses = append(statuses, DataStatus{
			DataType: dataType,
			Level:    level,
			Color:    level.Color(),
			AgeDays:  freshness.AgeDays(record.LastSuccess, now),
			Message:  freshness.Message(dataType, record.LastSuccess, now),
			Record:   record,
		})
	}

	return statuses, nil
}

// cronLogger routes cron's internal logging through zap.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.GetLogger().Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.GetLogger().Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
