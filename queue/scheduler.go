package queue

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/noteforge/beatqueue/queue/internal"
)

// ScheduleEntry pairs an invocation target with a minute-cron pattern.
type ScheduleEntry struct {
	Target  string
	Pattern string
}

// DefaultSchedule is the fixed table the scheduler evaluates every
// tick: discover-artists hourly, worker every 2 minutes, maintenance
// every 15 minutes, monitor every 30 minutes.
func DefaultSchedule() []ScheduleEntry {
	return []ScheduleEntry{
		{Target: "discover-artists", Pattern: "0 * * * *"},
		{Target: "worker", Pattern: "*/2 * * * *"},
		{Target: "maintenance", Pattern: "*/15 * * * *"},
		{Target: "monitor", Pattern: "*/30 * * * *"},
	}
}

// MatchesMinute reports whether pattern fires at the given wall-clock
// minute (0-59). Supported patterns are a strict subset of cron minute
// fields:
//
//	"* * * * *"     — every minute
//	"*/N * * * *"   — minutes where minute % N == 0
//	"<M> * * * *"   — exactly minute M (pattern begins with digits)
//
// Any other pattern never fires. This is intentionally not a general
// cron parser — only the minute field varies in this system's
// schedule, and a general parser would accept schedules this engine
// cannot faithfully honor (the invoking tick itself only fires once a
// minute).
func MatchesMinute(pattern string, minute int) bool {
	fields := strings.Fields(pattern)
	if len(fields) == 0 {
		return false
	}
	field := fields[0]

	if field == "*" {
		return true
	}
	if strings.HasPrefix(field, "*/") {
		n, err := strconv.Atoi(field[2:])
		if err != nil || n <= 0 {
			return false
		}
		return minute%n == 0
	}
	if field != "" && field[0] >= '0' && field[0] <= '9' {
		m, err := strconv.Atoi(field)
		if err != nil {
			return false
		}
		return m == minute
	}
	return false
}

// Invoker fires target fire-and-forget. The scheduler does not retry a
// failed invocation at this layer — the next minute's tick is the
// retry, per §4.6.
type Invoker func(ctx context.Context, target string) error

// Scheduler is the control-plane clock (C6): at each tick it evaluates
// DefaultSchedule (or a custom Schedule) against the current
// wall-clock minute and fires every matching target through Invoke.
type Scheduler struct {
	lifecycle
	task internal.TimerTask

	Schedule []ScheduleEntry
	Invoke   Invoker
	log      *slog.Logger

	now func() time.Time
}

// NewScheduler constructs a Scheduler using DefaultSchedule.
func NewScheduler(invoke Invoker, log *slog.Logger) *Scheduler {
	return &Scheduler{
		Schedule: DefaultSchedule(),
		Invoke:   invoke,
		log:      log,
		now:      time.Now,
	}
}

// Tick evaluates the schedule against the current minute and invokes
// every matching target. A failing invocation is logged and does not
// prevent the remaining targets in this tick from firing.
func (s *Scheduler) Tick(ctx context.Context) {
	minute := s.now().Minute()
	for _, entry := range s.Schedule {
		if !MatchesMinute(entry.Pattern, minute) {
			continue
		}
		if err := s.Invoke(ctx, entry.Target); err != nil {
			s.log.Error("scheduled invocation failed", "target", entry.Target, "err", err)
		}
	}
}

// Start begins a self-ticking minute loop (daemon mode). Most
// deployments instead drive Tick from an external once-a-minute
// trigger (a platform cron, a k8s CronJob) and never call Start; both
// paths share the same Tick/MatchesMinute logic.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.tryStart(); err != nil {
		return err
	}
	s.task.Start(ctx, s.Tick, time.Minute)
	return nil
}

// Stop terminates the self-ticking loop started by Start.
func (s *Scheduler) Stop(timeout time.Duration) error {
	return s.tryStop(timeout, s.task.Stop)
}
