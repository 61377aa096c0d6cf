package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/OpenxAI-Network/miniapp-factory/internal/agent"
	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
	"github.com/OpenxAI-Network/miniapp-factory/internal/repository"
)

// Dispatcher hands the oldest queued deployment to a ready worker. Queue
// order is strictly id ASC; the dispatcher is the only writer of
// coding_started_at.
type Dispatcher struct {
	deployments repository.DeploymentRepository
	projects    repository.ProjectRepository
	workers     repository.WorkerRepository
	sessions    Sessions
	tick        time.Duration
	logger      *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(
	deployments repository.DeploymentRepository,
	projects repository.ProjectRepository,
	workers repository.WorkerRepository,
	sessions Sessions,
	tick time.Duration,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		deployments: deployments,
		projects:    projects,
		workers:     workers,
		sessions:    sessions,
		tick:        tick,
		logger:      logger,
	}
}

// Run dispatches until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.dispatch(ctx)
		}
	}
}

// dispatch assigns at most one deployment per tick. When either the queue or
// the fleet side is missing the tick is dropped; nothing is held across
// ticks.
func (d *Dispatcher) dispatch(ctx context.Context) {
	dep, err := d.deployments.GetNextUnfinished(ctx)
	if err != nil {
		d.logger.Error("failed to get next queued deployment", "error", err)
		return
	}
	if dep == nil {
		return
	}

	worker, err := d.workers.GetAvailable(ctx)
	if err != nil {
		d.logger.Error("failed to get available worker", "error", err)
		return
	}
	if worker == nil {
		return
	}

	project, err := d.projects.GetByName(ctx, dep.Project)
	if err != nil {
		d.logger.Error("failed to get project", "project", dep.Project, "error", err)
		return
	}
	if project == nil {
		d.logger.Error("project of deployment does not exist", "project", dep.Project, "deployment", dep.ID)
		return
	}

	assignment, err := json.Marshal(models.CoderAssignment{
		Project:      dep.Project,
		Instructions: dep.Instructions,
		Version:      project.Version,
	})
	if err != nil {
		d.logger.Error("failed to marshal assignment", "deployment", dep.ID, "error", err)
		return
	}

	session, err := d.sessions.Worker(ctx, worker)
	if err != nil {
		d.logger.Error("failed to open worker session", "worker", worker.ID, "error", err)
		return
	}

	// Agent side effects first, store writes last. A crash in between leaves
	// a running coder with no DB linkage, which the completion watcher
	// reconciles from the assignment file.
	if err := writeAssignment(ctx, session, coderScope, coderContainer, coderDataDir, coderAssignmentFile, assignment); err != nil {
		d.logger.Error("failed to write coder assignment", "worker", worker.ID, "deployment", dep.ID, "error", err)
		return
	}
	if err := session.ExecuteProcess(ctx, coderScope, coderService, agent.ProcessStart); err != nil {
		d.logger.Error("failed to start coder", "worker", worker.ID, "deployment", dep.ID, "error", err)
		return
	}

	if err := d.workers.UpdateAssignment(ctx, worker.ID, &dep.ID); err != nil {
		d.logger.Error("failed to set worker assignment", "worker", worker.ID, "deployment", dep.ID, "error", err)
	}
	startedAt := time.Now().Unix()
	if err := d.deployments.UpdateCodingStartedAt(ctx, dep.ID, &startedAt); err != nil {
		d.logger.Error("failed to set coding started at", "deployment", dep.ID, "error", err)
	}

	deploymentsDispatched.Inc()
	d.logger.Info("dispatched deployment",
		"deployment", dep.ID, "project", dep.Project, "worker", worker.ID, "started_at", startedAt)
}

// writeAssignment materialises an assignment document inside a container,
// readable and writable only by the container's service user.
func writeAssignment(ctx context.Context, session AgentSession, scope, serviceUser, dataDir, file string, content []byte) error {
	if err := session.CreateDirectory(ctx, scope, dataDir, true); err != nil {
		return err
	}
	if err := session.WriteFile(ctx, scope, file, content); err != nil {
		return err
	}

	var userID, groupID uint32
	if users, err := session.Users(ctx, scope); err == nil {
		for _, u := range users {
			if u.Name == serviceUser {
				userID = u.ID
				break
			}
		}
	}
	if groups, err := session.Groups(ctx, scope); err == nil {
		for _, g := range groups {
			if g.Name == serviceUser {
				groupID = g.ID
				break
			}
		}
	}

	return session.SetPermissions(ctx, scope, file, []agent.Permission{
		{GrantedTo: agent.UserEntity(userID), Read: true, Write: true},
		{GrantedTo: agent.GroupEntity(groupID)},
		{GrantedTo: agent.AnyEntity()},
	})
}
