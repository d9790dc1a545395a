package scheduler

import (
	"time"

	"github.com/harrison/wiggum/internal/config"
	"github.com/harrison/wiggum/internal/history"
	"github.com/harrison/wiggum/internal/models"
)

// Score computes a ready task's priority score:
//
//	score = base_priority*1000 + aging_bonus + plan_bonus + dep_fanin_bonus - sibling_wip_penalty
//
// aging_bonus grows with how long the task has sat ready, from the
// history store. plan_bonus is awarded to tasks that participate in a
// dependency chain (have at least one dependency or one dependent) — a
// task with neither is standalone and gets none. dep_fanin_bonus rewards
// unblocking tasks with many downstream dependents. sibling_wip_penalty
// discourages piling concurrent workers onto the same task family.
func Score(task models.Task, allTasks []models.Task, cfg *config.Config, h *history.Store, now time.Time) (float64, error) {
	base := float64(task.Priority) * 1000

	aging, err := h.AgingBonus(task.ID, cfg.AgingFactor, now)
	if err != nil {
		return 0, err
	}

	depFanIn := 0
	for _, t := range allTasks {
		for _, dep := range t.Dependencies {
			if dep == task.ID {
				depFanIn++
			}
		}
	}

	planBonus := 0.0
	if len(task.Dependencies) > 0 || depFanIn > 0 {
		planBonus = cfg.PlanBonus
	}

	siblingWIP := 0
	for _, t := range allTasks {
		if t.ID != task.ID && t.Prefix() == task.Prefix() && t.Status == models.StatusInProgress {
			siblingWIP++
		}
	}

	return base + aging + planBonus + float64(depFanIn)*cfg.DepBonusPerTask - float64(siblingWIP)*cfg.SiblingWIPPenalty, nil
}
