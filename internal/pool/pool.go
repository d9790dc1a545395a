// Package pool tracks the set of live worker processes: one goroutine-safe
// map from worker directory to its PoolEntry, with disk-backed recovery
// after an orchestrator restart.
package pool

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/harrison/wiggum/internal/models"
)

// Pool is the in-memory worker pool, keyed by worker directory name.
type Pool struct {
	mu      sync.RWMutex
	entries map[string]models.PoolEntry
}

// New returns an empty Pool.
func New() *Pool {
	return &Pool{entries: make(map[string]models.PoolEntry)}
}

// Add registers a new worker.
func (p *Pool) Add(entry models.PoolEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[entry.Dir] = entry
}

// Remove drops a worker by directory name.
func (p *Pool) Remove(dir string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, dir)
}

// Get returns the entry for dir, if present.
func (p *Pool) Get(dir string) (models.PoolEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[dir]
	return e, ok
}

// Count returns the number of live workers of the given kind. Pass ""
// to count every worker regardless of kind.
func (p *Pool) Count(kind models.WorkerKind) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if kind == "" {
		return len(p.entries)
	}
	n := 0
	for _, e := range p.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// ForEach calls fn once per worker of the given kind (or every worker, if
// kind is ""), iterating over a snapshot taken under the read lock so fn
// may safely call back into the Pool.
func (p *Pool) ForEach(kind models.WorkerKind, fn func(models.PoolEntry)) {
	p.mu.RLock()
	snapshot := make([]models.PoolEntry, 0, len(p.entries))
	for _, e := range p.entries {
		if kind == "" || e.Kind == kind {
			snapshot = append(snapshot, e)
		}
	}
	p.mu.RUnlock()

	for _, e := range snapshot {
		fn(e)
	}
}

// workerDirPattern recognizes the three worker directory shapes the
// lifecycle package creates: worker-<TASK>-<epoch>,
// worker-<TASK>-fix-<epoch>, worker-<TASK>-resolve-<epoch>.
var workerDirPattern = regexp.MustCompile(`^worker-([A-Z]{2,8}-[0-9]{1,4})(?:-(fix|resolve))?-([0-9]+)$`)

// RestoreFromDisk rebuilds the pool from whatever worker directories exist
// under <root>/workers after an orchestrator restart, keeping only those
// whose recorded PID is still alive. Dead workers are left on disk for
// the lifecycle package's reap pass to classify and clean up.
func RestoreFromDisk(root string) (*Pool, error) {
	workersDir := filepath.Join(root, "workers")
	if _, err := os.Stat(workersDir); os.IsNotExist(err) {
		return New(), nil
	}

	entries, err := os.ReadDir(workersDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers directory: %w", err)
	}

	p := New()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m := workerDirPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		dir := filepath.Join(workersDir, entry.Name())

		pid, err := readPID(dir)
		if err != nil || !pidAlive(pid) {
			continue
		}

		kind := models.KindMain
		switch m[2] {
		case "fix":
			kind = models.KindFix
		case "resolve":
			kind = models.KindResolve
		}

		p.Add(models.PoolEntry{
			PID:    pid,
			Kind:   kind,
			TaskID: m[1],
			Dir:    dir,
		})
	}

	return p, nil
}

func readPID(workerDir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(workerDir, "pid"))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// pidAlive reports whether /proc/<pid>/cmdline exists. The cmdline's
// content is not read, so a recycled PID now held by an unrelated process
// counts as alive.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.Stat(filepath.Join("/proc", strconv.Itoa(pid), "cmdline"))
	return err == nil
}
