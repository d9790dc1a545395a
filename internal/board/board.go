package board

import (
	"fmt"
	"os"
	"sync"

	"github.com/harrison/wiggum/internal/apperrors"
	"github.com/harrison/wiggum/internal/filelock"
	"github.com/harrison/wiggum/internal/models"
)

// Board is the in-memory view of the markdown task board, backed by a file
// on disk. SetStatus re-reads the file, applies the change, and writes
// back while holding an exclusive lock, so concurrent orchestrator
// processes never silently clobber each other's writes.
type Board struct {
	path string
	mu   sync.RWMutex

	byID  map[string]int // task ID -> index into order
	order []models.Task
}

// Load reads and parses the board file at path.
func Load(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read board: %w", err)
	}
	tasks, err := ParseMarkdown(data)
	if err != nil {
		return nil, err
	}

	b := &Board{path: path}
	b.setTasks(tasks)
	return b, nil
}

func (b *Board) setTasks(tasks []models.Task) {
	b.order = tasks
	b.byID = make(map[string]int, len(tasks))
	for i, t := range tasks {
		b.byID[t.ID] = i
	}
}

// List returns every task on the board, in file order.
func (b *Board) List() []models.Task {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.Task, len(b.order))
	copy(out, b.order)
	return out
}

// Get returns the task matching id.
func (b *Board) Get(id string) (models.Task, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	idx, ok := b.byID[id]
	if !ok {
		return models.Task{}, fmt.Errorf("%s: %w", id, apperrors.ErrNotFound)
	}
	return b.order[idx], nil
}

// SetStatus transitions a task's status, persisting the change to disk
// under an exclusive file lock. It re-reads the board first: if the task's
// on-disk status no longer matches what this Board last observed for it,
// the write is refused as a concurrent edit rather than blindly overwritten.
func (b *Board) SetStatus(id, status string) error {
	lock := filelock.NewFileLock(b.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock board: %w", err)
	}
	defer lock.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if err != nil {
		return fmt.Errorf("failed to read board: %w", err)
	}
	onDisk, err := ParseMarkdown(data)
	if err != nil {
		return err
	}

	idx, ok := b.byID[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, apperrors.ErrNotFound)
	}
	lastSeen := b.order[idx]

	var diskIdx = -1
	for i, t := range onDisk {
		if t.ID == id {
			diskIdx = i
			break
		}
	}
	if diskIdx == -1 {
		return fmt.Errorf("%s: %w", id, apperrors.ErrNotFound)
	}
	if onDisk[diskIdx].Status != lastSeen.Status {
		return fmt.Errorf("task %s status changed from %q to %q since last read: %w",
			id, lastSeen.Status, onDisk[diskIdx].Status, apperrors.ErrConcurrentEdit)
	}

	onDisk[diskIdx].Status = status
	if err := filelock.AtomicWrite(b.path, RenderMarkdown(onDisk)); err != nil {
		return fmt.Errorf("failed to write board: %w", err)
	}

	b.setTasks(onDisk)
	return nil
}

// Ready returns tasks whose status is pending and whose dependencies are
// all done, in board order.
func (b *Board) Ready() []models.Task {
	b.mu.RLock()
	defer b.mu.RUnlock()

	statusByID := make(map[string]string, len(b.order))
	for _, t := range b.order {
		statusByID[t.ID] = t.Status
	}

	var ready []models.Task
	for _, t := range b.order {
		if t.Status != models.StatusPending {
			continue
		}
		if allDepsDone(t.Dependencies, statusByID) {
			ready = append(ready, t)
		}
	}
	return ready
}

// Blocked returns pending tasks that have at least one unfinished dependency.
func (b *Board) Blocked() []models.Task {
	b.mu.RLock()
	defer b.mu.RUnlock()

	statusByID := make(map[string]string, len(b.order))
	for _, t := range b.order {
		statusByID[t.ID] = t.Status
	}

	var blocked []models.Task
	for _, t := range b.order {
		if t.Status != models.StatusPending {
			continue
		}
		if !allDepsDone(t.Dependencies, statusByID) {
			blocked = append(blocked, t)
		}
	}
	return blocked
}

func allDepsDone(deps []string, statusByID map[string]string) bool {
	for _, dep := range deps {
		if statusByID[dep] != models.StatusDone {
			return false
		}
	}
	return true
}

// DetectCycles runs a three-color DFS over the dependency graph and
// returns apperrors.ErrCycle if any task transitively depends on itself.
func (b *Board) DetectCycles() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(b.order))
	depsByID := make(map[string][]string, len(b.order))
	for _, t := range b.order {
		depsByID[t.ID] = t.Dependencies
		color[t.ID] = white
	}

	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		for _, dep := range depsByID[id] {
			switch color[dep] {
			case gray:
				return fmt.Errorf("%s -> %s: %w", id, dep, apperrors.ErrCycle)
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}

	for _, t := range b.order {
		if color[t.ID] == white {
			if err := visit(t.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
