// Package scheduler hosts the background tasks of the deployment pipeline:
// the fleet manager, the dispatcher and the completion watcher. The tasks
// hold no references to each other; all coordination happens through store
// columns, which makes every transition restart-safe.
package scheduler

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/OpenxAI-Network/miniapp-factory/internal/agent"
	"github.com/OpenxAI-Network/miniapp-factory/internal/deployer"
	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
	"github.com/OpenxAI-Network/miniapp-factory/internal/repository"
)

// Identity is the local signing identity the fleet acts as.
type Identity interface {
	// Address returns the local account in "eth:<40 hex>" form.
	Address() string
	// DeployKey returns the SSH private key provisioned into containers.
	DeployKey() ([]byte, error)
}

// FleetManager reconciles the worker fleet: it sizes the fleet against queue
// depth and drives each fresh worker through its setup state machine. The
// state machine is materialised in the worker row's columns, so any tick can
// resume where the previous one stopped.
type FleetManager struct {
	workers     repository.WorkerRepository
	deployments repository.DeploymentRepository
	hw          deployer.HardwareDeployer
	sessions    Sessions
	identity    Identity
	tick        time.Duration
	logger      *slog.Logger
}

// NewFleetManager creates a fleet manager.
func NewFleetManager(
	workers repository.WorkerRepository,
	deployments repository.DeploymentRepository,
	hw deployer.HardwareDeployer,
	sessions Sessions,
	identity Identity,
	tick time.Duration,
	logger *slog.Logger,
) *FleetManager {
	return &FleetManager{
		workers:     workers,
		deployments: deployments,
		hw:          hw,
		sessions:    sessions,
		identity:    identity,
		tick:        tick,
		logger:      logger,
	}
}

// Run reconciles until the context is cancelled.
func (f *FleetManager) Run(ctx context.Context) {
	ticker := time.NewTicker(f.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.reconcile(ctx)
		}
	}
}

func (f *FleetManager) reconcile(ctx context.Context) {
	f.advanceSetups(ctx)
	f.resize(ctx)
}

func (f *FleetManager) advanceSetups(ctx context.Context) {
	workers, err := f.workers.GetAllNoSetupFinished(ctx)
	if err != nil {
		f.logger.Error("failed to get workers under setup", "error", err)
		return
	}

	for _, w := range workers {
		session, err := f.sessions.Worker(ctx, w)
		if err != nil {
			// No session is normal while the VM is still booting.
			continue
		}
		f.advanceSetup(ctx, session, w)
	}
}

// advanceSetup performs at most one state transition per tick. The current
// state is read off the worker row's columns.
func (f *FleetManager) advanceSetup(ctx context.Context, session AgentSession, w *models.Worker) {
	switch {
	case w.CoderDeployment == nil:
		network := containerNetwork
		id, err := session.SetContainerConfig(ctx, coderContainer, agent.ContainerChange{
			Settings: agent.ContainerSettings{
				Flake:      coderFlake,
				Network:    &network,
				NvidiaGPUs: []int{0},
			},
		})
		if err != nil {
			// Expected to fail until the OS install completes.
			return
		}
		f.logger.Info("deployed coder container", "worker", w.ID, "request", id)
		request := int64(id)
		if err := f.workers.UpdateCoderDeployment(ctx, w.ID, &request); err != nil {
			f.logger.Error("failed to record coder deployment request", "worker", w.ID, "error", err)
		}

	case w.ImagegenDeployment == nil:
		if !f.requestSucceeded(ctx, session, w, *w.CoderDeployment) {
			return
		}
		id, err := session.SetContainerConfig(ctx, imagegenContainer, agent.ContainerChange{
			Settings: agent.ContainerSettings{
				Flake:      imagegenFlake,
				NvidiaGPUs: []int{0},
			},
		})
		if err != nil {
			f.logger.Error("failed to deploy imagegen container", "worker", w.ID, "error", err)
			return
		}
		f.logger.Info("deployed imagegen container", "worker", w.ID, "request", id)
		request := int64(id)
		if err := f.workers.UpdateImagegenDeployment(ctx, w.ID, &request); err != nil {
			f.logger.Error("failed to record imagegen deployment request", "worker", w.ID, "error", err)
		}

	default:
		if !f.requestSucceeded(ctx, session, w, *w.ImagegenDeployment) {
			return
		}
		f.finishSetup(ctx, session, w)
	}
}

func (f *FleetManager) requestSucceeded(ctx context.Context, session AgentSession, w *models.Worker, request int64) bool {
	if request < 0 || request > math.MaxUint32 {
		f.logger.Error("request id out of range", "worker", w.ID, "request", request)
		return false
	}

	result, err := session.RequestInfo(ctx, uint32(request))
	if err != nil {
		f.logger.Error("failed to get request info", "worker", w.ID, "request", request, "error", err)
		return false
	}
	return result.Succeeded()
}

func (f *FleetManager) finishSetup(ctx context.Context, session AgentSession, w *models.Worker) {
	processes, err := session.ListProcesses(ctx, coderScope)
	if err != nil {
		f.logger.Error("failed to list coder processes", "worker", w.ID, "error", err)
		return
	}
	if hasProcess(processes, modelLoaderService) {
		// Wait for the model download to finish.
		return
	}

	f.logger.Info("finishing setup", "worker", w.ID)

	key, err := f.identity.DeployKey()
	if err != nil {
		f.logger.Warn("failed to read deploy key", "worker", w.ID, "error", err)
	} else {
		f.provisionDeployKey(ctx, session, w, coderScope, coderContainer, coderDataDir, key)
		f.provisionDeployKey(ctx, session, w, imagegenScope, imagegenContainer, imagegenDataDir, key)
	}

	if err := f.workers.UpdateSetupFinished(ctx, w.ID, true); err != nil {
		f.logger.Error("failed to mark setup finished", "worker", w.ID, "error", err)
	}
}

// provisionDeployKey installs the SSH key into one container, readable only
// by the container's service user. Failures are logged; the worker still
// becomes ready and clones over HTTPS as a fallback.
func (f *FleetManager) provisionDeployKey(ctx context.Context, session AgentSession, w *models.Worker, scope, serviceUser, dataDir string, key []byte) {
	keyPath := dataDir + "/.ssh/id_ed25519"

	if err := session.CreateDirectory(ctx, scope, dataDir+"/.ssh", true); err != nil {
		f.logger.Error("failed to create ssh directory", "worker", w.ID, "scope", scope, "error", err)
		return
	}
	if err := session.WriteFile(ctx, scope, keyPath, key); err != nil {
		f.logger.Warn("failed to write ssh key", "worker", w.ID, "scope", scope, "error", err)
		return
	}

	user, group := f.resolveServiceIDs(ctx, session, w, scope, serviceUser)
	err := session.SetPermissions(ctx, scope, keyPath, []agent.Permission{
		{GrantedTo: agent.UserEntity(user), Read: true},
		{GrantedTo: agent.GroupEntity(group)},
		{GrantedTo: agent.AnyEntity()},
	})
	if err != nil {
		f.logger.Warn("failed to set ssh key permissions", "worker", w.ID, "scope", scope, "error", err)
	}
}

func (f *FleetManager) resolveServiceIDs(ctx context.Context, session AgentSession, w *models.Worker, scope, name string) (uint32, uint32) {
	var userID, groupID uint32

	users, err := session.Users(ctx, scope)
	if err != nil {
		f.logger.Warn("failed to list users", "worker", w.ID, "scope", scope, "error", err)
	}
	for _, u := range users {
		if u.Name == name {
			userID = u.ID
			break
		}
	}

	groups, err := session.Groups(ctx, scope)
	if err != nil {
		f.logger.Warn("failed to list groups", "worker", w.ID, "scope", scope, "error", err)
	}
	for _, g := range groups {
		if g.Name == name {
			groupID = g.ID
			break
		}
	}

	return userID, groupID
}

// resize reconciles fleet size against queue depth. An empty queue tears down
// every idle dynamic worker; otherwise one extra VM is provisioned per three
// queued deployments beyond what the current fleet covers.
func (f *FleetManager) resize(ctx context.Context) {
	queued, err := f.deployments.GetQueuedCount(ctx)
	if err != nil {
		f.logger.Error("failed to get queued count", "error", err)
		return
	}
	queueDepth.Set(float64(queued))

	// Read on every tick so the gauge also reflects teardowns.
	count, err := f.workers.GetCount(ctx)
	if err != nil {
		f.logger.Error("failed to get worker count", "error", err)
		return
	}
	workerTotal.Set(float64(count))

	if queued == 0 {
		f.teardownIdle(ctx)
		return
	}

	extra := (queued / 3) - (count - 1)
	for i := int64(0); i < extra; i++ {
		f.provision(ctx)
	}
}

func (f *FleetManager) teardownIdle(ctx context.Context) {
	idle, err := f.workers.GetAllDynamicUnassigned(ctx)
	if err != nil {
		f.logger.Error("failed to get idle workers", "error", err)
		return
	}

	for _, w := range idle {
		if err := f.hw.Undeploy(ctx, w.Hardware); err != nil {
			f.logger.Error("failed to undeploy worker", "worker", w.ID, "hardware", f.hw.Identify(w.Hardware), "error", err)
			continue
		}
		vmsTornDown.Inc()
		if err := f.workers.Delete(ctx, w.ID); err != nil {
			f.logger.Error("failed to delete worker row", "worker", w.ID, "error", err)
		}
	}
}

func (f *FleetManager) provision(ctx context.Context) {
	initialConfig := workerInitialConfig
	owner := f.identity.Address()

	hardware, err := f.hw.Deploy(ctx, deployer.DeployInput{
		InitialConfig: &initialConfig,
		XnodeOwner:    &owner,
	})
	if err != nil {
		f.logger.Error("failed to provision worker vm", "error", err)
		return
	}
	vmsProvisioned.Inc()

	worker := &models.Worker{
		Hardware: hardware,
		Dynamic:  true,
	}
	if err := f.workers.Insert(ctx, worker); err != nil {
		f.logger.Error("failed to insert worker row", "hardware", f.hw.Identify(hardware), "error", err)

		// The VM would leak without a row tracking it.
		if err := f.hw.Undeploy(ctx, hardware); err != nil {
			f.logger.Error("failed to undeploy worker after insert failure", "error", err)
		}
		return
	}
	f.logger.Info("provisioned worker", "worker", worker.ID, "hardware", f.hw.Identify(hardware))
}

func hasProcess(processes []agent.Process, name string) bool {
	for _, p := range processes {
		if p.Name == name {
			return true
		}
	}
	return false
}
