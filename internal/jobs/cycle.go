package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"unfollowninja/internal/budget"
	"unfollowninja/internal/classify"
	"unfollowninja/internal/detect"
	"unfollowninja/internal/followers"
	"unfollowninja/internal/metrics"
	"unfollowninja/internal/model"
	"unfollowninja/internal/notify"
	"unfollowninja/internal/store/sqlitestore"
)

// Store is the persistence a cycle reads and writes.
type Store interface {
	detect.Store
	budget.CycleCounter
	FollowerSet(ctx context.Context, accountID string) (model.FollowerSet, error)
	HasSnapshot(ctx context.Context, accountID string) (bool, error)
	Language(ctx context.Context, accountID string) (model.Lang, error)
	SaveSnapshot(ctx context.Context, accountID string, current model.FollowerSet, newFollowers []string, now time.Time) error
	RecordCycle(ctx context.Context, c sqlitestore.CycleRecord) error
}

// UsernameWriter remembers usernames seen during a cycle.
type UsernameWriter interface {
	CacheUsernames(ctx context.Context, users []model.User) error
}

// Options tune a Runner.
type Options struct {
	// MaxPerHour caps cycles per account per hour, 0 for no limit.
	MaxPerHour int
	// DryRun leaves the snapshot, the cycle log and the username cache untouched.
	DryRun bool
}

// Result is the outcome of one cycle.
type Result struct {
	CycleID string
	// Initial is set when the account had no snapshot yet.
	Initial   bool
	Recap     string
	Message   string
	Notified  int
	Leftovers int
}

// Runner executes detection cycles.
type Runner struct {
	store      Store
	usernames  UsernameWriter
	fetcher    *followers.Fetcher
	detector   *detect.Detector
	classifier *classify.Classifier
	renderer   *notify.Renderer
	guard      *budget.Guard
	opts       Options
	logger     *zap.Logger
	nowFn      func() time.Time
}

// NewRunner wires a Runner. usernames may be nil; guard defaults to a fresh Guard.
func NewRunner(store Store, usernames UsernameWriter, fetcher *followers.Fetcher, detector *detect.Detector,
	classifier *classify.Classifier, renderer *notify.Renderer, guard *budget.Guard, opts Options, logger *zap.Logger,
) *Runner {
	if guard == nil {
		guard = budget.NewGuard()
	}
	return &Runner{
		store:      store,
		usernames:  usernames,
		fetcher:    fetcher,
		detector:   detector,
		classifier: classifier,
		renderer:   renderer,
		guard:      guard,
		opts:       opts,
		logger:     logger.Named("cycle"),
		nowFn:      time.Now,
	}
}

type cycleSummary struct {
	newFollowers int
	unfollowers  int
	events       []model.FollowEvent
}

// RunCheckOnce runs one detection cycle for accountID.
func (r *Runner) RunCheckOnce(ctx context.Context, accountID string) (Result, error) {
	release, err := r.guard.Acquire(accountID)
	if err != nil {
		metrics.IncCycleError("in_progress")
		return Result{}, err
	}
	defer release()

	start := r.nowFn()
	ok, err := budget.ShouldAllowCycle(ctx, r.store, accountID, r.opts.MaxPerHour, start)
	if err != nil {
		metrics.IncCycleError("store")
		return Result{}, fmt.Errorf("check budget: %w", err)
	}
	if !ok {
		metrics.IncCycleError("budget")
		return Result{}, budget.ErrBudgetExhausted
	}

	metrics.CycleRuns.Inc()
	defer metrics.ObserveCycleDuration(start)

	res := Result{CycleID: uuid.NewString()}
	logger := r.logger.With(zap.String("cycleID", res.CycleID), zap.String("accountID", accountID))

	summary, err := r.run(ctx, logger, accountID, &res)
	outcome := "ok"
	if err != nil {
		outcome = errorKind(err)
		metrics.IncCycleError(outcome)
		logger.Warn("Check cycle failed", zap.String("kind", outcome), zap.Error(err))
	}
	if r.opts.DryRun {
		return res, err
	}

	record := sqlitestore.CycleRecord{
		ID:        res.CycleID,
		AccountID: accountID,
		StartedAt: start,
		Notified:  res.Notified,
		Outcome:   outcome,
	}
	if summary != nil {
		record.NewFollowers = summary.newFollowers
		record.Unfollowers = summary.unfollowers
		if len(summary.events) > 0 {
			record.Payload = summary.events
		}
	}
	if recErr := r.store.RecordCycle(ctx, record); recErr != nil {
		logger.Warn("Failed to record cycle", zap.Error(recErr))
	}
	return res, err
}

func (r *Runner) run(ctx context.Context, logger *zap.Logger, accountID string, res *Result) (*cycleSummary, error) {
	hasSnapshot, err := r.store.HasSnapshot(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot state: %w", err)
	}
	res.Initial = !hasSnapshot

	current, err := r.fetcher.Fetch(ctx, accountID)
	if err != nil {
		return nil, err
	}
	previous, err := r.store.FollowerSet(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	diff, err := r.detector.Detect(ctx, accountID, previous, current)
	if err != nil {
		return nil, err
	}
	res.Recap = diff.Recap
	summary := &cycleSummary{newFollowers: len(diff.NewFollowers), unfollowers: len(diff.Unfollowers)}
	metrics.Unfollowers.Add(float64(len(diff.Unfollowers)))

	if len(diff.Unfollowers) > 0 {
		classified, err := r.classifier.Classify(ctx, diff.Unfollowers)
		if err != nil {
			return summary, err
		}
		metrics.FilteredEvents.Add(float64(len(classified.Classified) - len(classified.Notify)))
		summary.events = classified.Notify

		lang, err := r.store.Language(ctx, accountID)
		if err != nil {
			return summary, fmt.Errorf("load language: %w", err)
		}
		res.Message = r.renderer.Render(classified.Notify, lang, len(classified.Leftovers))
		res.Notified = len(classified.Notify)
		res.Leftovers = len(classified.Leftovers)
		if !r.opts.DryRun {
			r.rememberUsernames(ctx, logger, classified.Classified)
		}
	}

	if r.opts.DryRun {
		logger.Info("Dry run, store left unchanged", zap.String("recap", res.Recap))
		return summary, nil
	}
	if err := r.store.SaveSnapshot(ctx, accountID, current, diff.NewFollowers, r.nowFn()); err != nil {
		return summary, fmt.Errorf("save snapshot: %w", err)
	}
	logger.Info("Check cycle done",
		zap.Int("followers", current.Len()),
		zap.Int("newFollowers", len(diff.NewFollowers)),
		zap.Int("unfollowers", len(diff.Unfollowers)),
		zap.Int("notified", res.Notified),
		zap.Int("leftovers", res.Leftovers))
	return summary, nil
}

// rememberUsernames caches the usernames lookups returned. Failures only log.
func (r *Runner) rememberUsernames(ctx context.Context, logger *zap.Logger, events []model.FollowEvent) {
	if r.usernames == nil {
		return
	}
	users := make([]model.User, 0, len(events))
	for _, e := range events {
		if e.Username == "" || e.Suspended || e.Deleted {
			continue
		}
		users = append(users, model.User{ID: e.ID, Username: e.Username})
	}
	if len(users) == 0 {
		return
	}
	if err := r.usernames.CacheUsernames(ctx, users); err != nil {
		logger.Warn("Failed to cache usernames", zap.Error(err))
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, followers.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, classify.ErrLookupFailed):
		return "lookup"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
