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

// Watcher observes assigned workers and advances each deployment through
// coding, imagegen and finalisation. It is the only writer of the completion
// timestamps and of worker assignment release.
type Watcher struct {
	deployments repository.DeploymentRepository
	projects    repository.ProjectRepository
	workers     repository.WorkerRepository
	sessions    Sessions
	tick        time.Duration
	logger      *slog.Logger
}

// NewWatcher creates a completion watcher.
func NewWatcher(
	deployments repository.DeploymentRepository,
	projects repository.ProjectRepository,
	workers repository.WorkerRepository,
	sessions Sessions,
	tick time.Duration,
	logger *slog.Logger,
) *Watcher {
	return &Watcher{
		deployments: deployments,
		projects:    projects,
		workers:     workers,
		sessions:    sessions,
		tick:        tick,
		logger:      logger,
	}
}

// Run watches until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.observe(ctx)
		}
	}
}

func (w *Watcher) observe(ctx context.Context) {
	workers, err := w.workers.GetAllAssigned(ctx)
	if err != nil {
		w.logger.Error("failed to get assigned workers", "error", err)
		return
	}

	for _, worker := range workers {
		if worker.Assignment == nil {
			w.logger.Error("worker has no assignment anymore", "worker", worker.ID)
			continue
		}

		dep, err := w.deployments.GetByID(ctx, *worker.Assignment)
		if err != nil {
			w.logger.Error("failed to get deployment", "deployment", *worker.Assignment, "error", err)
			continue
		}
		if dep == nil {
			w.logger.Error("assigned deployment not found", "deployment", *worker.Assignment, "worker", worker.ID)
			continue
		}

		session, err := w.sessions.Worker(ctx, worker)
		if err != nil {
			continue
		}

		if dep.CodingFinishedAt == nil {
			w.observeCoding(ctx, session, worker, dep)
		} else if dep.ImagegenFinishedAt == nil {
			w.observeImagegen(ctx, session, worker, dep)
		}
	}
}

// observeCoding waits for the coder service to exit, records its output and
// starts the imagegen stage on the same worker.
func (w *Watcher) observeCoding(ctx context.Context, session AgentSession, worker *models.Worker, dep *models.Deployment) {
	output, running := w.stageOutput(ctx, session, worker, coderScope, coderService, coderAssignmentFile)
	if running || output == nil {
		return
	}

	finishedAt := time.Now().Unix()
	if err := w.deployments.UpdateCodingFinishedAt(ctx, dep.ID, &finishedAt); err != nil {
		w.logger.Error("failed to set coding finished at", "deployment", dep.ID, "error", err)
	}
	if err := w.deployments.UpdateCodingGitHash(ctx, dep.ID, &output.GitHash); err != nil {
		w.logger.Error("failed to set coding git hash", "deployment", dep.ID, "error", err)
	}
	w.logger.Info("coding finished", "deployment", dep.ID, "git_hash", output.GitHash, "finished_at", finishedAt)

	// Free model RAM before the imagegen stage.
	if err := session.ExecuteProcess(ctx, coderScope, ollamaService, agent.ProcessRestart); err != nil {
		w.logger.Warn("failed to restart ollama", "worker", worker.ID, "error", err)
	}

	assignment, err := json.Marshal(models.ImagegenAssignment{Project: dep.Project})
	if err != nil {
		w.logger.Error("failed to marshal imagegen assignment", "deployment", dep.ID, "error", err)
		return
	}
	if err := writeAssignment(ctx, session, imagegenScope, imagegenContainer, imagegenDataDir, imagegenAssignmentFile, assignment); err != nil {
		w.logger.Error("failed to write imagegen assignment", "worker", worker.ID, "deployment", dep.ID, "error", err)
		return
	}
	if err := session.ExecuteProcess(ctx, imagegenScope, imagegenService, agent.ProcessStart); err != nil {
		w.logger.Error("failed to start imagegen", "worker", worker.ID, "deployment", dep.ID, "error", err)
		return
	}

	startedAt := time.Now().Unix()
	if err := w.deployments.UpdateImagegenStartedAt(ctx, dep.ID, &startedAt); err != nil {
		w.logger.Error("failed to set imagegen started at", "deployment", dep.ID, "error", err)
	}
	w.logger.Info("imagegen started", "deployment", dep.ID, "started_at", startedAt)
}

// observeImagegen waits for the imagegen service to exit, records its output,
// releases the worker and triggers the downstream redeploy.
func (w *Watcher) observeImagegen(ctx context.Context, session AgentSession, worker *models.Worker, dep *models.Deployment) {
	output, running := w.stageOutput(ctx, session, worker, imagegenScope, imagegenService, imagegenAssignmentFile)
	if running || output == nil {
		return
	}

	finishedAt := time.Now().Unix()
	if err := w.deployments.UpdateImagegenFinishedAt(ctx, dep.ID, &finishedAt); err != nil {
		w.logger.Error("failed to set imagegen finished at", "deployment", dep.ID, "error", err)
	}
	if err := w.deployments.UpdateImagegenGitHash(ctx, dep.ID, &output.GitHash); err != nil {
		w.logger.Error("failed to set imagegen git hash", "deployment", dep.ID, "error", err)
	}
	deploymentsCompleted.Inc()
	w.logger.Info("imagegen finished", "deployment", dep.ID, "git_hash", output.GitHash, "finished_at", finishedAt)

	if err := session.ExecuteProcess(ctx, imagegenScope, comfyuiService, agent.ProcessRestart); err != nil {
		w.logger.Warn("failed to restart comfyui", "worker", worker.ID, "error", err)
	}

	if err := w.workers.UpdateAssignment(ctx, worker.ID, nil); err != nil {
		w.logger.Error("failed to release worker", "worker", worker.ID, "error", err)
	}

	project, err := w.projects.GetByName(ctx, dep.Project)
	if err != nil {
		w.logger.Error("failed to get project", "project", dep.Project, "error", err)
		return
	}
	if project == nil {
		w.logger.Error("project of deployment does not exist", "project", dep.Project, "deployment", dep.ID)
		return
	}

	// The next deployment builds from the repo head again.
	if err := w.projects.UpdateVersion(ctx, dep.Project, nil); err != nil {
		w.logger.Error("failed to clear project version", "project", dep.Project, "error", err)
	}
	project.Version = nil

	w.redeploy(ctx, project, dep)
}

// redeploy pushes the rebuilt project to its container on the host node and
// records the resulting request id.
func (w *Watcher) redeploy(ctx context.Context, project *models.Project, dep *models.Deployment) {
	host, err := w.sessions.HostNode(ctx)
	if err != nil {
		w.logger.Error("failed to open host node session", "error", err)
		return
	}

	network := project.Network()
	id, err := host.SetContainerConfig(ctx, project.Name, agent.ContainerChange{
		Settings: agent.ContainerSettings{
			Flake:   project.Flake(),
			Network: &network,
		},
		UpdateInputs: []string{},
	})
	if err != nil {
		w.logger.Error("failed to redeploy project container", "project", project.Name, "error", err)
		return
	}

	request := int64(id)
	if err := w.deployments.UpdateDeploymentRequest(ctx, dep.ID, &request); err != nil {
		w.logger.Error("failed to record deployment request", "deployment", dep.ID, "error", err)
	}
	w.logger.Info("triggered project redeploy", "project", project.Name, "deployment", dep.ID, "request", request)
}

// stageOutput probes one stage. It reports running = true while the service
// is still in the process list; otherwise it reads back the assignment file
// the worker overwrote with its output.
func (w *Watcher) stageOutput(ctx context.Context, session AgentSession, worker *models.Worker, scope, service, file string) (*models.StageOutput, bool) {
	processes, err := session.ListProcesses(ctx, scope)
	if err != nil {
		w.logger.Error("failed to list processes", "worker", worker.ID, "scope", scope, "error", err)
		return nil, false
	}
	if hasProcess(processes, service) {
		return nil, true
	}

	content, err := session.ReadFile(ctx, scope, file)
	if err != nil {
		w.logger.Error("failed to read stage output", "worker", worker.ID, "scope", scope, "error", err)
		return nil, false
	}
	text, err := content.Text()
	if err != nil {
		w.logger.Error("stage output is not utf-8", "worker", worker.ID, "scope", scope, "error", err)
		return nil, false
	}

	var output models.StageOutput
	if err := json.Unmarshal([]byte(text), &output); err != nil {
		w.logger.Error("failed to parse stage output", "worker", worker.ID, "scope", scope, "error", err)
		return nil, false
	}
	if output.GitHash == "" {
		// The service exited without overwriting its assignment file.
		w.logger.Error("stage output has no git hash", "worker", worker.ID, "scope", scope)
		return nil, false
	}
	return &output, false
}
