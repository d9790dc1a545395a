// Package scheduler drives the orchestrator's main loop: each tick it
// scores the board's ready tasks, spawns workers up to the pool's
// capacity, reaps finished or orphaned ones, and reconciles board status
// against whatever the pool actually observes.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/harrison/wiggum/internal/board"
	"github.com/harrison/wiggum/internal/config"
	"github.com/harrison/wiggum/internal/history"
	"github.com/harrison/wiggum/internal/lifecycle"
	"github.com/harrison/wiggum/internal/logger"
	"github.com/harrison/wiggum/internal/models"
	"github.com/harrison/wiggum/internal/pool"
)

// TickLogger is the subset of the logger package's sinks the scheduler
// reports through. ConsoleLogger, FileLogger, and NoOpLogger all satisfy it.
type TickLogger interface {
	LogTick(ready, blocked, inProgress int)
	LogSpawn(taskID, kind, dir string)
	LogReap(taskID, outcome string)
	LogRunSummary(done, failed, skipped int, duration time.Duration)
}

// Scheduler owns one orchestration run over a single project.
type Scheduler struct {
	Config   *config.Config
	Board    *board.Board
	Pool     *pool.Pool
	History  *history.Store
	Manager  *lifecycle.Manager
	Log      TickLogger
	Activity *logger.ActivityLogger

	now func() time.Time
}

// New constructs a Scheduler from its collaborators.
func New(cfg *config.Config, b *board.Board, p *pool.Pool, h *history.Store, m *lifecycle.Manager, log TickLogger, activity *logger.ActivityLogger) *Scheduler {
	return &Scheduler{
		Config:   cfg,
		Board:    b,
		Pool:     p,
		History:  h,
		Manager:  m,
		Log:      log,
		Activity: activity,
		now:      time.Now,
	}
}

// Run executes the scheduler's main loop until ctx is cancelled or the
// board has no more pending or in-progress work. It wakes on its
// configured tick interval, or early whenever fsnotify reports a write or
// create on the board file. Waking does not re-read the board file: Tick
// works from the Board's in-memory view of the tasks, so a hand edit of
// the file is not loaded by the wake-up.
func (s *Scheduler) Run(ctx context.Context, boardPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start board watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(boardPath); err != nil {
		return fmt.Errorf("failed to watch board file: %w", err)
	}

	ticker := time.NewTicker(s.Config.TickInterval)
	defer ticker.Stop()

	start := s.now()
	var done, failed, skipped int

	for {
		outcome, err := s.Tick(ctx)
		if err != nil {
			return err
		}
		done += outcome.Done
		failed += outcome.Failed
		skipped += outcome.Skipped

		if outcome.Ready == 0 && outcome.Blocked == 0 && outcome.InProgress == 0 {
			s.Log.LogRunSummary(done, failed, skipped, s.now().Sub(start))
			return nil
		}

		select {
		case <-ctx.Done():
			s.Log.LogRunSummary(done, failed, skipped, s.now().Sub(start))
			return ctx.Err()
		case <-ticker.C:
		case event, ok := <-watcher.Events:
			if ok && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				continue
			}
		}
	}
}

// TickOutcome summarizes one call to Tick, for the run loop's running tally.
type TickOutcome struct {
	Ready, Blocked, InProgress int
	Done, Failed, Skipped      int
}

// Tick is one pass of the scheduler loop: reconcile orphaned workers,
// score and spawn ready tasks up to capacity, and report the board's
// current shape.
func (s *Scheduler) Tick(ctx context.Context) (TickOutcome, error) {
	if err := s.reconcileOrphans(); err != nil {
		return TickOutcome{}, err
	}

	now := s.now()
	allTasks := s.Board.List()
	ready := s.Board.Ready()
	blocked := s.Board.Blocked()
	inProgress := 0
	for _, t := range allTasks {
		if t.Status == models.StatusInProgress {
			inProgress++
		}
	}

	s.Log.LogTick(len(ready), len(blocked), inProgress)
	if s.Activity != nil {
		s.Activity.Record("scheduler.tick", "", map[string]interface{}{
			"ready": len(ready), "blocked": len(blocked), "in_progress": inProgress,
		})
	}

	eligible := make([]models.Task, 0, len(ready))
	for _, t := range ready {
		if err := s.History.RecordReady(t.ID, now); err != nil {
			return TickOutcome{}, err
		}
		ok, err := s.History.SkipEligible(t.ID, s.Config.SkipBackoff, now)
		if err != nil {
			return TickOutcome{}, err
		}
		if ok {
			eligible = append(eligible, t)
		}
	}

	scored := make([]scoredTask, 0, len(eligible))
	for _, t := range eligible {
		sc, err := Score(t, allTasks, s.Config, s.History, now)
		if err != nil {
			return TickOutcome{}, err
		}
		scored = append(scored, scoredTask{task: t, score: sc})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	capacity := s.Config.MaxWorkers - s.Pool.Count("")
	if s.Config.MaxWorkers == 0 {
		capacity = len(scored)
	}
	outcome := TickOutcome{Ready: len(ready), Blocked: len(blocked), InProgress: inProgress}
	skipped := len(scored)

	for i := 0; i < len(scored) && i < capacity; i++ {
		task := scored[i].task
		skipped--

		if s.Config.DryRun {
			continue
		}

		if err := s.Board.SetStatus(task.ID, models.StatusInProgress); err != nil {
			return outcome, fmt.Errorf("failed to claim task %s: %w", task.ID, err)
		}
		if err := s.History.ClearReady(task.ID); err != nil {
			return outcome, err
		}

		dir, err := s.Manager.Create(ctx, task, models.KindMain)
		if err != nil {
			return outcome, fmt.Errorf("failed to create worker for %s: %w", task.ID, err)
		}
		s.Log.LogSpawn(task.ID, string(models.KindMain), dir)
		if s.Activity != nil {
			s.Activity.Record("worker.spawned", task.ID, map[string]interface{}{"kind": "main", "dir": dir})
		}

		result, err := s.Manager.Run(ctx, dir, task)
		if err != nil {
			outcome.Failed++
			continue
		}
		workerOutcome, err := s.Manager.ExitAndReap(ctx, dir, task, result)
		if err != nil {
			return outcome, err
		}
		s.Log.LogReap(task.ID, string(workerOutcome))
		if s.Activity != nil {
			s.Activity.Record("worker.reaped", task.ID, map[string]interface{}{"outcome": string(workerOutcome)})
		}
		if err := s.History.RecordOutcome(task.ID, string(workerOutcome)); err != nil {
			return outcome, err
		}

		switch workerOutcome {
		case models.OutcomeSuccess:
			outcome.Done++
		case models.OutcomeRetry:
			if _, err := s.History.IncrementRetry(task.ID); err != nil {
				return outcome, err
			}
		default:
			outcome.Failed++
		}
	}

	for i := capacity; i < len(scored); i++ {
		if err := s.History.RecordSkip(scored[i].task.ID, now); err != nil {
			return outcome, err
		}
	}
	outcome.Skipped = skipped
	if outcome.Skipped < 0 {
		outcome.Skipped = 0
	}

	return outcome, nil
}

type scoredTask struct {
	task  models.Task
	score float64
}

// reconcileOrphans drops pool entries whose worker process has died
// without going through ExitAndReap, so a crashed sub-agent doesn't hold
// its slot forever. The task is left in-progress on the board; the next
// tick's scorer will not re-offer it since it isn't in Ready(), but an
// operator can re-run `wiggum status` to see it stalled.
func (s *Scheduler) reconcileOrphans() error {
	restored, err := pool.RestoreFromDisk(s.Manager.ProjectDir)
	if err != nil {
		return err
	}

	var dead []models.PoolEntry
	s.Pool.ForEach("", func(e models.PoolEntry) {
		if _, alive := restored.Get(e.Dir); !alive {
			dead = append(dead, e)
		}
	})
	for _, e := range dead {
		s.Pool.Remove(e.Dir)
		s.Log.LogReap(e.TaskID, "orphaned")
		if s.Activity != nil {
			s.Activity.Record("worker.orphaned", e.TaskID, map[string]interface{}{"dir": e.Dir})
		}
	}
	return nil
}
