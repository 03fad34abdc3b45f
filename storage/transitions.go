package storage

import (
	"fmt"

	"github.com/poiesic/harvest/core"
)

// CheckScrapeJobUpdate validates a scrape job update against the state machine.
// Terminal jobs are immutable, status moves follow core.CanTransitionJob, and
// progress may not go backwards while the job is running.
func CheckScrapeJobUpdate(old, updated *core.ScrapeJob) error {
	if updated.ID != old.ID || updated.Owner != old.Owner {
		return fmt.Errorf("%w: id and owner are immutable", core.ErrInvalidTransition)
	}
	if old.Status.Terminal() {
		return fmt.Errorf("%w: job %s is %s", core.ErrInvalidTransition, old.ID, old.Status)
	}
	if updated.Status != old.Status && !core.CanTransitionJob(old.Status, updated.Status) {
		return fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, old.Status, updated.Status)
	}
	if updated.Progress < 0 || updated.Progress > 100 {
		return fmt.Errorf("%w: %d", core.ErrInvalidProgress, updated.Progress)
	}
	if old.Status == core.JobStatusRunning && updated.Status == core.JobStatusRunning && updated.Progress < old.Progress {
		return fmt.Errorf("%w: %d after %d", core.ErrInvalidProgress, updated.Progress, old.Progress)
	}
	return nil
}

// CheckDocumentJobUpdate validates a document job update.
func CheckDocumentJobUpdate(old, updated *core.DocumentJob) error {
	if updated.ID != old.ID || updated.Owner != old.Owner {
		return fmt.Errorf("%w: id and owner are immutable", core.ErrInvalidTransition)
	}
	if old.Status.Terminal() {
		return fmt.Errorf("%w: job %s is %s", core.ErrInvalidTransition, old.ID, old.Status)
	}
	if updated.Status != old.Status && !core.CanTransitionJob(old.Status, updated.Status) {
		return fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, old.Status, updated.Status)
	}
	return nil
}

// CheckDatabaseUpdate validates a vector database update. Only building
// databases change; ready and error are final until deletion.
func CheckDatabaseUpdate(old, updated *core.VectorDatabase) error {
	if updated.ID != old.ID || updated.Owner != old.Owner || updated.IndexName != old.IndexName {
		return fmt.Errorf("%w: id, owner and index name are immutable", core.ErrInvalidTransition)
	}
	if old.Status != core.DatabaseStatusBuilding {
		return fmt.Errorf("%w: database %s is %s", core.ErrInvalidTransition, old.ID, old.Status)
	}
	if updated.Status != old.Status && !core.CanTransitionDatabase(old.Status, updated.Status) {
		return fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, old.Status, updated.Status)
	}
	return nil
}

// CheckChatSessionUpdate rejects changes to a session's identity or binding.
func CheckChatSessionUpdate(old, updated *core.ChatSession) error {
	if updated.ID != old.ID || updated.Owner != old.Owner || updated.DatabaseID != old.DatabaseID {
		return fmt.Errorf("%w: id, owner and database are immutable", core.ErrInvalidTransition)
	}
	return nil
}
