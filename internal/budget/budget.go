package budget

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrCycleInProgress is returned when a cycle for the account is already running.
	ErrCycleInProgress = errors.New("check cycle already in progress")
	// ErrBudgetExhausted is returned when the hourly cycle budget is spent.
	ErrBudgetExhausted = errors.New("hourly check budget exhausted")
)

// CycleCounter counts the cycles recorded for an account.
type CycleCounter interface {
	CountCyclesWithin(ctx context.Context, accountID string, start, end time.Time) (int, error)
}

// ShouldAllowCycle checks the hourly budget of accountID before a cycle starts.
// maxPerHour <= 0 disables the check.
func ShouldAllowCycle(ctx context.Context, db CycleCounter, accountID string, maxPerHour int, now time.Time) (bool, error) {
	if maxPerHour <= 0 {
		return true, nil
	}
	now = now.UTC()
	startHour := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, time.UTC)
	hourCount, err := db.CountCyclesWithin(ctx, accountID, startHour, startHour.Add(time.Hour))
	if err != nil {
		return false, err
	}
	return hourCount < maxPerHour, nil
}

// Guard keeps at most one cycle per account running in this process.
type Guard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{running: make(map[string]struct{})}
}

// Acquire marks accountID as running. The returned func releases it.
func (g *Guard) Acquire(accountID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.running[accountID]; busy {
		return nil, ErrCycleInProgress
	}
	g.running[accountID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.running, accountID)
			g.mu.Unlock()
		})
	}, nil
}
