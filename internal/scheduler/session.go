package scheduler

import (
	"context"
	"fmt"

	"github.com/OpenxAI-Network/miniapp-factory/internal/agent"
	"github.com/OpenxAI-Network/miniapp-factory/internal/config"
	"github.com/OpenxAI-Network/miniapp-factory/internal/deployer"
	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
)

// AgentSession is the subset of agent operations the pipeline uses.
// *agent.Session implements it.
type AgentSession interface {
	SetContainerConfig(ctx context.Context, container string, change agent.ContainerChange) (uint32, error)
	CreateDirectory(ctx context.Context, scope, path string, makeParent bool) error
	WriteFile(ctx context.Context, scope, path string, content []byte) error
	ReadFile(ctx context.Context, scope, path string) (agent.FileContent, error)
	SetPermissions(ctx context.Context, scope, path string, permissions []agent.Permission) error
	Users(ctx context.Context, scope string) ([]agent.User, error)
	Groups(ctx context.Context, scope string) ([]agent.Group, error)
	ListProcesses(ctx context.Context, scope string) ([]agent.Process, error)
	ExecuteProcess(ctx context.Context, scope, process string, command agent.ProcessCommand) error
	RequestInfo(ctx context.Context, requestID uint32) (*agent.RequestResult, error)
	SetOS(ctx context.Context, change agent.OSChange) error
}

// Sessions hands out fresh authenticated sessions. Sessions are never cached
// across ticks.
type Sessions interface {
	// Worker opens a session to a worker VM through the forward proxy.
	Worker(ctx context.Context, worker *models.Worker) (AgentSession, error)
	// HostNode opens a session to the downstream node hosting the project
	// containers.
	HostNode(ctx context.Context) (AgentSession, error)
}

type agentSessions struct {
	cfg      config.SchedulerConfig
	deployer deployer.HardwareDeployer
	signer   agent.Signer
}

// NewSessions creates the production session factory.
func NewSessions(cfg config.SchedulerConfig, hw deployer.HardwareDeployer, signer agent.Signer) Sessions {
	return &agentSessions{cfg: cfg, deployer: hw, signer: signer}
}

func (s *agentSessions) Worker(ctx context.Context, worker *models.Worker) (AgentSession, error) {
	ip, err := s.deployer.IPv4(ctx, worker.Hardware)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ip of worker %d: %w", worker.ID, err)
	}
	if !ip.Supported {
		return nil, fmt.Errorf("worker %d provider does not support ip lookup", worker.ID)
	}
	if ip.Addr == nil {
		return nil, fmt.Errorf("worker %d has no ip yet", worker.ID)
	}

	baseURL := s.cfg.ForwardProxy + "/" + *ip.Addr
	return agent.Login(ctx, baseURL, s.cfg.WorkerDomain, s.signer)
}

func (s *agentSessions) HostNode(ctx context.Context) (AgentSession, error) {
	return agent.Login(ctx, s.cfg.HostNodeURL, s.cfg.HostNodeDomain, s.signer)
}
