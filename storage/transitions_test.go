package storage

import (
	"testing"

	"github.com/poiesic/harvest/core"
	"github.com/stretchr/testify/assert"
)

func TestCheckScrapeJobUpdate(t *testing.T) {
	base := core.ScrapeJob{ID: "j1", Owner: "alice", Status: core.JobStatusRunning, Progress: 40}

	tests := []struct {
		name    string
		old     core.ScrapeJob
		mutate  func(j *core.ScrapeJob)
		wantErr error
	}{
		{"progress forward", base, func(j *core.ScrapeJob) { j.Progress = 60 }, nil},
		{"progress backward", base, func(j *core.ScrapeJob) { j.Progress = 30 }, core.ErrInvalidProgress},
		{"progress above 100", base, func(j *core.ScrapeJob) { j.Progress = 101 }, core.ErrInvalidProgress},
		{"complete", base, func(j *core.ScrapeJob) { j.Status = core.JobStatusCompleted; j.Progress = 100 }, nil},
		{"fail while running", base, func(j *core.ScrapeJob) { j.Status = core.JobStatusFailed }, nil},
		{"owner change", base, func(j *core.ScrapeJob) { j.Owner = "bob" }, core.ErrInvalidTransition},
		{"back to pending", base, func(j *core.ScrapeJob) { j.Status = core.JobStatusPending }, core.ErrInvalidTransition},
		{
			"terminal immutable",
			core.ScrapeJob{ID: "j1", Owner: "alice", Status: core.JobStatusCompleted, Progress: 100},
			func(j *core.ScrapeJob) { j.Message = "again" },
			core.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old := tt.old
			updated := tt.old
			tt.mutate(&updated)
			err := CheckScrapeJobUpdate(&old, &updated)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCheckDocumentJobUpdate(t *testing.T) {
	old := &core.DocumentJob{ID: "d1", Owner: "alice", Status: core.JobStatusPending}
	assert.NoError(t, CheckDocumentJobUpdate(old, &core.DocumentJob{ID: "d1", Owner: "alice", Status: core.JobStatusCompleted}))

	done := &core.DocumentJob{ID: "d1", Owner: "alice", Status: core.JobStatusFailed}
	assert.ErrorIs(t, CheckDocumentJobUpdate(done, &core.DocumentJob{ID: "d1", Owner: "alice", Status: core.JobStatusCompleted}), core.ErrInvalidTransition)
}

func TestCheckDatabaseUpdate(t *testing.T) {
	building := &core.VectorDatabase{ID: "v1", Owner: "alice", IndexName: "harvest-v1", Status: core.DatabaseStatusBuilding}

	ready := *building
	ready.Status = core.DatabaseStatusReady
	assert.NoError(t, CheckDatabaseUpdate(building, &ready))

	renamed := *building
	renamed.IndexName = "harvest-other"
	assert.ErrorIs(t, CheckDatabaseUpdate(building, &renamed), core.ErrInvalidTransition)

	again := ready
	again.Status = core.DatabaseStatusError
	assert.ErrorIs(t, CheckDatabaseUpdate(&ready, &again), core.ErrInvalidTransition)
}
