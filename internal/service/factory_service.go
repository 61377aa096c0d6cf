// Package service provides business logic implementations.
package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/OpenxAI-Network/miniapp-factory/internal/agent"
	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
	apierrors "github.com/OpenxAI-Network/miniapp-factory/internal/pkg/errors"
	"github.com/OpenxAI-Network/miniapp-factory/internal/repohost"
	"github.com/OpenxAI-Network/miniapp-factory/internal/repository"
	"github.com/OpenxAI-Network/miniapp-factory/internal/scheduler"
)

const (
	// projectPrice is the creation price in credit units once the free tier
	// no longer applies.
	projectPrice = 20_000_000

	// freeProjectCap is the global project count under which first projects
	// are free.
	freeProjectCap = 1000

	hostScope   = "host"
	exposedFile = "/etc/nixos/exposed"
)

// Identity exposes the process signing identity to the service layer.
type Identity interface {
	Address() string
}

// FactoryService implements the user-facing project lifecycle: pricing,
// creation, change requests, resets and the credit surface.
type FactoryService interface {
	Owner() string
	UserProjects(ctx context.Context, account string) ([]string, error)
	UserCredits(ctx context.Context, account string) (int64, error)
	ProjectAvailable(ctx context.Context, name string) (bool, error)
	ProjectPrice(ctx context.Context, account string) (int64, error)
	CreateProject(ctx context.Context, account, name string) error
	ChangeProject(ctx context.Context, account, name, instructions string) (int32, error)
	History(ctx context.Context, name string) ([]*models.Deployment, error)
	ResetProject(ctx context.Context, account, name string, deployment *int32) (uint32, error)
	SetAccountAssociation(ctx context.Context, account, name string, assoc *models.AccountAssociation) (uint32, error)
	SetBaseBuild(ctx context.Context, account, name string, build *models.BaseBuild) (uint32, error)
	LLMOutput(ctx context.Context, deployment int32) (string, error)
	QueuePosition(ctx context.Context, deployment int32) (int64, error)
	RedeemPromoCode(ctx context.Context, account, code string) error
	AddPromoCodes(ctx context.Context, payload json.RawMessage, signature string) error
}

type factoryService struct {
	projects    repository.ProjectRepository
	deployments repository.DeploymentRepository
	credits     repository.CreditRepository
	promoCodes  repository.PromoCodeRepository
	workers     repository.WorkerRepository
	repoHost    repohost.RepoHost
	sessions    scheduler.Sessions
	identity    Identity
}

// NewFactoryService creates a new factory service.
func NewFactoryService(
	projects repository.ProjectRepository,
	deployments repository.DeploymentRepository,
	credits repository.CreditRepository,
	promoCodes repository.PromoCodeRepository,
	workers repository.WorkerRepository,
	repoHost repohost.RepoHost,
	sessions scheduler.Sessions,
	identity Identity,
) FactoryService {
	return &factoryService{
		projects:    projects,
		deployments: deployments,
		credits:     credits,
		promoCodes:  promoCodes,
		workers:     workers,
		repoHost:    repoHost,
		sessions:    sessions,
		identity:    identity,
	}
}

// Owner returns the process signing account.
func (s *factoryService) Owner() string {
	return s.identity.Address()
}

// UserProjects returns the names of all projects owned by the account.
func (s *factoryService) UserProjects(ctx context.Context, account string) ([]string, error) {
	projects, err := s.projects.GetAllByOwner(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get projects of %s: %w", account, err)
	}

	names := make([]string, len(projects))
	for i, p := range projects {
		names[i] = p.Name
	}
	return names, nil
}

// UserCredits returns the account's ledger balance.
func (s *factoryService) UserCredits(ctx context.Context, account string) (int64, error) {
	return s.credits.GetTotalCreditsByAccount(ctx, account)
}

// ProjectAvailable reports whether the name passes validation and is unclaimed.
func (s *factoryService) ProjectAvailable(ctx context.Context, name string) (bool, error) {
	if !models.ValidProjectName(name) {
		return false, nil
	}

	existing, err := s.projects.GetByName(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to get project %s: %w", name, err)
	}
	return existing == nil, nil
}

// ProjectPrice computes the creation price for the account. First projects
// are free while the global count is under the free cap.
func (s *factoryService) ProjectPrice(ctx context.Context, account string) (int64, error) {
	owned, err := s.projects.GetAllByOwner(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("failed to get projects of %s: %w", account, err)
	}
	if len(owned) > 0 {
		return projectPrice, nil
	}

	count, err := s.projects.GetCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}
	if count < freeProjectCap {
		return 0, nil
	}
	return projectPrice, nil
}

// CreateProject debits the ledger, inserts the project, creates its source
// repo from the template and deploys the initial container on the host node.
func (s *factoryService) CreateProject(ctx context.Context, account, name string) error {
	if !models.ValidProjectName(name) {
		return apierrors.NewValidationError("%s is not a valid project name", name)
	}

	existing, err := s.projects.GetByName(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to get project %s: %w", name, err)
	}
	if existing != nil {
		return apierrors.NewValidationError("project %s already exists", name)
	}

	price, err := s.ProjectPrice(ctx, account)
	if err != nil {
		return err
	}
	if price > 0 {
		debit := &models.Credit{
			Account:     account,
			Credits:     -price,
			Description: "Creation of project " + name,
			Date:        time.Now().Unix(),
		}
		if err := s.credits.Insert(ctx, debit); err != nil {
			if errors.Is(err, repository.ErrInsufficientCredits) {
				return apierrors.ErrPaymentRequired
			}
			return fmt.Errorf("failed to debit %s: %w", account, err)
		}
	}

	project := &models.Project{Name: name, Owner: account}
	if err := s.projects.Insert(ctx, project); err != nil {
		return fmt.Errorf("failed to insert project %s: %w", name, err)
	}

	if err := s.repoHost.CreateRepo(ctx, name); err != nil {
		return fmt.Errorf("failed to create repo for %s: %w", name, err)
	}

	host, err := s.sessions.HostNode(ctx)
	if err != nil {
		return fmt.Errorf("failed to open host node session: %w", err)
	}

	if _, err := s.deployContainer(ctx, host, project); err != nil {
		return err
	}
	if err := s.rewriteExposed(ctx, host); err != nil {
		return err
	}
	if err := host.SetOS(ctx, agent.OSChange{UpdateInputs: []string{}}); err != nil {
		return fmt.Errorf("failed to rebuild host node os: %w", err)
	}
	return nil
}

// ChangeProject enqueues a change request. A project with a deployment that
// has not started coding yet rejects further changes.
func (s *factoryService) ChangeProject(ctx context.Context, account, name, instructions string) (int32, error) {
	project, err := s.authorizedProject(ctx, account, name)
	if err != nil {
		return 0, err
	}

	unfinished, err := s.deployments.GetAllByProjectUnfinished(ctx, project.Name)
	if err != nil {
		return 0, fmt.Errorf("failed to get unfinished deployments of %s: %w", name, err)
	}
	if len(unfinished) > 0 {
		return 0, apierrors.ErrConflict.WithMessage("project %s already has a queued deployment", name)
	}

	deployment := &models.Deployment{
		Project:      project.Name,
		Instructions: instructions,
		SubmittedAt:  time.Now().Unix(),
	}
	if err := s.deployments.Insert(ctx, deployment); err != nil {
		return 0, fmt.Errorf("failed to insert deployment for %s: %w", name, err)
	}
	return deployment.ID, nil
}

// History returns the project's visible deployments, oldest first.
func (s *factoryService) History(ctx context.Context, name string) ([]*models.Deployment, error) {
	deployments, err := s.deployments.GetAllByProjectUndeleted(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get deployments of %s: %w", name, err)
	}
	if deployments == nil {
		deployments = []*models.Deployment{}
	}
	return deployments, nil
}

// ResetProject rewinds the project to a prior deployment's imagegen output,
// or to the template when no target is given. Newer deployments are
// soft-deleted either way; the container is redeployed from the rewound
// source.
func (s *factoryService) ResetProject(ctx context.Context, account, name string, deployment *int32) (uint32, error) {
	project, err := s.authorizedProject(ctx, account, name)
	if err != nil {
		return 0, err
	}

	if deployment == nil {
		return s.resetToTemplate(ctx, project)
	}

	target, err := s.deployments.GetByID(ctx, *deployment)
	if err != nil {
		return 0, fmt.Errorf("failed to get deployment %d: %w", *deployment, err)
	}
	if target == nil || target.Project != project.Name || target.Deleted {
		return 0, apierrors.NewValidationError("deployment %d does not exist", *deployment)
	}
	if target.ImagegenGitHash == nil {
		return 0, apierrors.NewValidationError("deployment %d has not finished", *deployment)
	}

	if err := s.projects.UpdateVersion(ctx, project.Name, target.ImagegenGitHash); err != nil {
		return 0, fmt.Errorf("failed to pin version of %s: %w", name, err)
	}
	if err := s.deployments.DeleteAllAfter(ctx, project.Name, target.ID); err != nil {
		return 0, fmt.Errorf("failed to delete deployments of %s: %w", name, err)
	}

	project.Version = target.ImagegenGitHash
	return s.redeploy(ctx, project)
}

func (s *factoryService) resetToTemplate(ctx context.Context, project *models.Project) (uint32, error) {
	if err := s.deployments.DeleteAllAfter(ctx, project.Name, 0); err != nil {
		return 0, fmt.Errorf("failed to delete deployments of %s: %w", project.Name, err)
	}
	if err := s.projects.UpdateVersion(ctx, project.Name, nil); err != nil {
		return 0, fmt.Errorf("failed to clear version of %s: %w", project.Name, err)
	}

	if err := s.repoHost.DeleteRepo(ctx, project.Name); err != nil {
		return 0, fmt.Errorf("failed to delete repo of %s: %w", project.Name, err)
	}
	if err := s.repoHost.CreateRepo(ctx, project.Name); err != nil {
		return 0, fmt.Errorf("failed to recreate repo of %s: %w", project.Name, err)
	}

	project.Version = nil
	return s.redeploy(ctx, project)
}

// SetAccountAssociation replaces the association document and redeploys.
func (s *factoryService) SetAccountAssociation(ctx context.Context, account, name string, assoc *models.AccountAssociation) (uint32, error) {
	project, err := s.authorizedProject(ctx, account, name)
	if err != nil {
		return 0, err
	}

	if err := s.projects.UpdateAccountAssociation(ctx, project.Name, assoc); err != nil {
		return 0, fmt.Errorf("failed to update account association of %s: %w", name, err)
	}

	project.AccountAssociation = assoc
	return s.redeploy(ctx, project)
}

// SetBaseBuild replaces the build options and redeploys.
func (s *factoryService) SetBaseBuild(ctx context.Context, account, name string, build *models.BaseBuild) (uint32, error) {
	project, err := s.authorizedProject(ctx, account, name)
	if err != nil {
		return 0, err
	}

	if err := s.projects.UpdateBaseBuild(ctx, project.Name, build); err != nil {
		return 0, fmt.Errorf("failed to update base build of %s: %w", name, err)
	}

	project.BaseBuild = build
	return s.redeploy(ctx, project)
}

// LLMOutput reads the live log of the stage currently running for the
// deployment on its assigned worker.
func (s *factoryService) LLMOutput(ctx context.Context, deployment int32) (string, error) {
	dep, err := s.deployments.GetByID(ctx, deployment)
	if err != nil {
		return "", fmt.Errorf("failed to get deployment %d: %w", deployment, err)
	}
	if dep == nil {
		return "", apierrors.NewValidationError("deployment %d does not exist", deployment)
	}

	worker, err := s.workers.GetByAssignment(ctx, deployment)
	if err != nil {
		return "", fmt.Errorf("failed to get worker of deployment %d: %w", deployment, err)
	}
	if worker == nil {
		return "", apierrors.NewValidationError("deployment %d is not running", deployment)
	}

	return scheduler.LiveOutput(ctx, s.sessions, worker, dep)
}

// QueuePosition returns how many queued deployments precede this one.
func (s *factoryService) QueuePosition(ctx context.Context, deployment int32) (int64, error) {
	dep, err := s.deployments.GetByID(ctx, deployment)
	if err != nil {
		return 0, fmt.Errorf("failed to get deployment %d: %w", deployment, err)
	}
	if dep == nil {
		return 0, apierrors.NewValidationError("deployment %d does not exist", deployment)
	}

	return s.deployments.GetQueuedCountBefore(ctx, dep.ID)
}

// RedeemPromoCode redeems a code for the account. The store's compare and
// swap guarantees at most one redemption across concurrent requests.
func (s *factoryService) RedeemPromoCode(ctx context.Context, account, code string) error {
	promo, err := s.promoCodes.GetUnredeemedByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to get promo code: %w", err)
	}
	if promo == nil {
		return apierrors.NewValidationError("promo code does not exist or was already redeemed")
	}

	redeemed, err := s.promoCodes.Redeem(ctx, code, account)
	if err != nil {
		return fmt.Errorf("failed to redeem promo code: %w", err)
	}
	if !redeemed {
		return apierrors.NewValidationError("promo code does not exist or was already redeemed")
	}

	grant := &models.Credit{
		Account:     account,
		Credits:     promo.Credits,
		Description: promo.Description,
		Date:        time.Now().Unix(),
	}
	if err := s.credits.Insert(ctx, grant); err != nil {
		return fmt.Errorf("failed to credit promo code: %w", err)
	}
	return nil
}

// AddPromoCodes inserts a batch of codes. Only the process owner may add
// codes: the payload must carry a keccak signature by the local signing key.
func (s *factoryService) AddPromoCodes(ctx context.Context, payload json.RawMessage, signature string) error {
	signer, err := recoverSigner(payload, signature)
	if err != nil {
		return apierrors.ErrUnauthorized
	}
	if signer != s.identity.Address() {
		return apierrors.ErrUnauthorized
	}

	var codes []models.PromoCode
	if err := json.Unmarshal(payload, &codes); err != nil {
		return apierrors.NewValidationError("invalid promo codes: %v", err)
	}

	for i := range codes {
		if err := s.promoCodes.Insert(ctx, &codes[i]); err != nil {
			return fmt.Errorf("failed to insert promo code %s: %w", codes[i].Code, err)
		}
	}
	return nil
}

// recoverSigner recovers the eth account that produced a keccak signature
// over the payload.
func recoverSigner(payload []byte, signature string) (string, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return "", fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != 65 {
		return "", fmt.Errorf("signature has %d bytes, want 65", len(sig))
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(crypto.Keccak256(payload), sig)
	if err != nil {
		return "", fmt.Errorf("failed to recover signer: %w", err)
	}

	addr := crypto.PubkeyToAddress(*pub)
	return "eth:" + strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x")), nil
}

// authorizedProject loads a project and checks the caller owns it. Unknown
// callers and unknown projects are distinguishable on purpose: the name is
// public information (the available endpoint), ownership is not.
func (s *factoryService) authorizedProject(ctx context.Context, account, name string) (*models.Project, error) {
	if !models.ValidProjectName(name) {
		return nil, apierrors.NewValidationError("%s is not a valid project name", name)
	}

	project, err := s.projects.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", name, err)
	}
	if project == nil {
		return nil, apierrors.NewValidationError("project %s does not exist", name)
	}
	if project.Owner != account {
		return nil, apierrors.ErrUnauthorized
	}
	return project, nil
}

// deployContainer issues the container config for the project on the host
// node and returns the agent request id.
func (s *factoryService) deployContainer(ctx context.Context, host scheduler.AgentSession, project *models.Project) (uint32, error) {
	network := project.Network()
	request, err := host.SetContainerConfig(ctx, project.Name, agent.ContainerChange{
		Settings: agent.ContainerSettings{
			Flake:   project.Flake(),
			Network: &network,
		},
		UpdateInputs: []string{},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to deploy container %s: %w", project.Name, err)
	}
	return request, nil
}

// redeploy opens a host node session and reissues the project container.
func (s *factoryService) redeploy(ctx context.Context, project *models.Project) (uint32, error) {
	host, err := s.sessions.HostNode(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to open host node session: %w", err)
	}
	return s.deployContainer(ctx, host, project)
}

// rewriteExposed rewrites the host's exposure file with every project name,
// one per line.
func (s *factoryService) rewriteExposed(ctx context.Context, host scheduler.AgentSession) error {
	projects, err := s.projects.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to get projects: %w", err)
	}

	names := make([]string, len(projects))
	for i, p := range projects {
		names[i] = p.Name
	}
	if err := host.WriteFile(ctx, hostScope, exposedFile, []byte(strings.Join(names, "\n"))); err != nil {
		return fmt.Errorf("failed to rewrite exposure file: %w", err)
	}
	return nil
}

// Compile-time check to ensure factoryService implements FactoryService.
var _ FactoryService = (*factoryService)(nil)
