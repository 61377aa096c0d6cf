package service

import (
	"context"

	"github.com/OpenxAI-Network/miniapp-factory/internal/agent"
	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
	"github.com/OpenxAI-Network/miniapp-factory/internal/scheduler"
)

type fakeProjectRepo struct {
	getByName                func(ctx context.Context, name string) (*models.Project, error)
	getByID                  func(ctx context.Context, id int32) (*models.Project, error)
	getAll                   func(ctx context.Context) ([]*models.Project, error)
	getCount                 func(ctx context.Context) (int64, error)
	getAllByOwner            func(ctx context.Context, owner string) ([]*models.Project, error)
	insert                   func(ctx context.Context, project *models.Project) error
	updateAccountAssociation func(ctx context.Context, name string, assoc *models.AccountAssociation) error
	updateBaseBuild          func(ctx context.Context, name string, build *models.BaseBuild) error
	updateVersion            func(ctx context.Context, name string, version *string) error
}

func (f *fakeProjectRepo) GetByName(ctx context.Context, name string) (*models.Project, error) {
	return f.getByName(ctx, name)
}

func (f *fakeProjectRepo) GetByID(ctx context.Context, id int32) (*models.Project, error) {
	return f.getByID(ctx, id)
}

func (f *fakeProjectRepo) GetAll(ctx context.Context) ([]*models.Project, error) {
	return f.getAll(ctx)
}

func (f *fakeProjectRepo) GetCount(ctx context.Context) (int64, error) {
	return f.getCount(ctx)
}

func (f *fakeProjectRepo) GetAllByOwner(ctx context.Context, owner string) ([]*models.Project, error) {
	return f.getAllByOwner(ctx, owner)
}

func (f *fakeProjectRepo) GetNextUnminted(ctx context.Context) (*models.Project, error) {
	panic("not expected")
}

func (f *fakeProjectRepo) Insert(ctx context.Context, project *models.Project) error {
	return f.insert(ctx, project)
}

func (f *fakeProjectRepo) UpdateOwner(ctx context.Context, name, owner string) error {
	panic("not expected")
}

func (f *fakeProjectRepo) UpdateAccountAssociation(ctx context.Context, name string, assoc *models.AccountAssociation) error {
	return f.updateAccountAssociation(ctx, name, assoc)
}

func (f *fakeProjectRepo) UpdateBaseBuild(ctx context.Context, name string, build *models.BaseBuild) error {
	return f.updateBaseBuild(ctx, name, build)
}

func (f *fakeProjectRepo) UpdateVersion(ctx context.Context, name string, version *string) error {
	return f.updateVersion(ctx, name, version)
}

func (f *fakeProjectRepo) UpdateNFTMint(ctx context.Context, name string, tx *string) error {
	panic("not expected")
}

type fakeDeploymentRepo struct {
	getByID                   func(ctx context.Context, id int32) (*models.Deployment, error)
	getAllByProjectUndeleted  func(ctx context.Context, project string) ([]*models.Deployment, error)
	getAllByProjectUnfinished func(ctx context.Context, project string) ([]*models.Deployment, error)
	getQueuedCountBefore      func(ctx context.Context, id int32) (int64, error)
	insert                    func(ctx context.Context, deployment *models.Deployment) error
	deleteAllAfter            func(ctx context.Context, project string, after int32) error
}

func (f *fakeDeploymentRepo) GetByID(ctx context.Context, id int32) (*models.Deployment, error) {
	return f.getByID(ctx, id)
}

func (f *fakeDeploymentRepo) GetAllByProjectUndeleted(ctx context.Context, project string) ([]*models.Deployment, error) {
	return f.getAllByProjectUndeleted(ctx, project)
}

func (f *fakeDeploymentRepo) GetAllByProjectUnfinished(ctx context.Context, project string) ([]*models.Deployment, error) {
	return f.getAllByProjectUnfinished(ctx, project)
}

func (f *fakeDeploymentRepo) GetNextUnfinished(ctx context.Context) (*models.Deployment, error) {
	panic("not expected")
}

func (f *fakeDeploymentRepo) GetQueuedCount(ctx context.Context) (int64, error) {
	panic("not expected")
}

func (f *fakeDeploymentRepo) GetQueuedCountBefore(ctx context.Context, id int32) (int64, error) {
	return f.getQueuedCountBefore(ctx, id)
}

func (f *fakeDeploymentRepo) Insert(ctx context.Context, deployment *models.Deployment) error {
	return f.insert(ctx, deployment)
}

func (f *fakeDeploymentRepo) UpdateCodingStartedAt(ctx context.Context, id int32, at *int64) error {
	panic("not expected")
}

func (f *fakeDeploymentRepo) UpdateCodingFinishedAt(ctx context.Context, id int32, at *int64) error {
	panic("not expected")
}

func (f *fakeDeploymentRepo) UpdateCodingGitHash(ctx context.Context, id int32, hash *string) error {
	panic("not expected")
}

func (f *fakeDeploymentRepo) UpdateImagegenStartedAt(ctx context.Context, id int32, at *int64) error {
	panic("not expected")
}

func (f *fakeDeploymentRepo) UpdateImagegenFinishedAt(ctx context.Context, id int32, at *int64) error {
	panic("not expected")
}

func (f *fakeDeploymentRepo) UpdateImagegenGitHash(ctx context.Context, id int32, hash *string) error {
	panic("not expected")
}

func (f *fakeDeploymentRepo) UpdateDeploymentRequest(ctx context.Context, id int32, request *int64) error {
	panic("not expected")
}

func (f *fakeDeploymentRepo) DeleteAllAfter(ctx context.Context, project string, after int32) error {
	return f.deleteAllAfter(ctx, project, after)
}

type fakeCreditRepo struct {
	getTotal func(ctx context.Context, account string) (int64, error)
	insert   func(ctx context.Context, credit *models.Credit) error
}

func (f *fakeCreditRepo) GetTotalCreditsByAccount(ctx context.Context, account string) (int64, error) {
	return f.getTotal(ctx, account)
}

func (f *fakeCreditRepo) GetAllByAccount(ctx context.Context, account string) ([]*models.Credit, error) {
	panic("not expected")
}

func (f *fakeCreditRepo) Insert(ctx context.Context, credit *models.Credit) error {
	return f.insert(ctx, credit)
}

type fakePromoCodeRepo struct {
	getUnredeemedByCode func(ctx context.Context, code string) (*models.PromoCode, error)
	insert              func(ctx context.Context, promo *models.PromoCode) error
	redeem              func(ctx context.Context, code, account string) (bool, error)
}

func (f *fakePromoCodeRepo) GetUnredeemedByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	return f.getUnredeemedByCode(ctx, code)
}

func (f *fakePromoCodeRepo) Insert(ctx context.Context, promo *models.PromoCode) error {
	return f.insert(ctx, promo)
}

func (f *fakePromoCodeRepo) Redeem(ctx context.Context, code, account string) (bool, error) {
	return f.redeem(ctx, code, account)
}

type fakeWorkerRepo struct {
	getByAssignment func(ctx context.Context, deployment int32) (*models.Worker, error)
}

func (f *fakeWorkerRepo) GetCount(ctx context.Context) (int64, error) { panic("not expected") }

func (f *fakeWorkerRepo) GetAllNoSetupFinished(ctx context.Context) ([]*models.Worker, error) {
	panic("not expected")
}

func (f *fakeWorkerRepo) GetAllDynamicUnassigned(ctx context.Context) ([]*models.Worker, error) {
	panic("not expected")
}

func (f *fakeWorkerRepo) GetAllAssigned(ctx context.Context) ([]*models.Worker, error) {
	panic("not expected")
}

func (f *fakeWorkerRepo) GetAvailable(ctx context.Context) (*models.Worker, error) {
	panic("not expected")
}

func (f *fakeWorkerRepo) GetByAssignment(ctx context.Context, deployment int32) (*models.Worker, error) {
	return f.getByAssignment(ctx, deployment)
}

func (f *fakeWorkerRepo) Insert(ctx context.Context, worker *models.Worker) error {
	panic("not expected")
}

func (f *fakeWorkerRepo) UpdateCoderDeployment(ctx context.Context, id int32, request *int64) error {
	panic("not expected")
}

func (f *fakeWorkerRepo) UpdateImagegenDeployment(ctx context.Context, id int32, request *int64) error {
	panic("not expected")
}

func (f *fakeWorkerRepo) UpdateSetupFinished(ctx context.Context, id int32, finished bool) error {
	panic("not expected")
}

func (f *fakeWorkerRepo) UpdateAssignment(ctx context.Context, id int32, deployment *int32) error {
	panic("not expected")
}

func (f *fakeWorkerRepo) Delete(ctx context.Context, id int32) error { panic("not expected") }

type fakeRepoHost struct {
	createRepo func(ctx context.Context, name string) error
	deleteRepo func(ctx context.Context, name string) error
}

func (f *fakeRepoHost) CreateRepo(ctx context.Context, name string) error {
	return f.createRepo(ctx, name)
}

func (f *fakeRepoHost) DeleteRepo(ctx context.Context, name string) error {
	return f.deleteRepo(ctx, name)
}

type fakeSession struct {
	setContainerConfig func(ctx context.Context, container string, change agent.ContainerChange) (uint32, error)
	writeFile          func(ctx context.Context, scope, path string, content []byte) error
	readFile           func(ctx context.Context, scope, path string) (agent.FileContent, error)
	setOS              func(ctx context.Context, change agent.OSChange) error
}

func (f *fakeSession) SetContainerConfig(ctx context.Context, container string, change agent.ContainerChange) (uint32, error) {
	return f.setContainerConfig(ctx, container, change)
}

func (f *fakeSession) CreateDirectory(ctx context.Context, scope, path string, makeParent bool) error {
	panic("not expected")
}

func (f *fakeSession) WriteFile(ctx context.Context, scope, path string, content []byte) error {
	return f.writeFile(ctx, scope, path, content)
}

func (f *fakeSession) ReadFile(ctx context.Context, scope, path string) (agent.FileContent, error) {
	return f.readFile(ctx, scope, path)
}

func (f *fakeSession) SetPermissions(ctx context.Context, scope, path string, permissions []agent.Permission) error {
	panic("not expected")
}

func (f *fakeSession) Users(ctx context.Context, scope string) ([]agent.User, error) {
	panic("not expected")
}

func (f *fakeSession) Groups(ctx context.Context, scope string) ([]agent.Group, error) {
	panic("not expected")
}

func (f *fakeSession) ListProcesses(ctx context.Context, scope string) ([]agent.Process, error) {
	panic("not expected")
}

func (f *fakeSession) ExecuteProcess(ctx context.Context, scope, process string, command agent.ProcessCommand) error {
	panic("not expected")
}

func (f *fakeSession) RequestInfo(ctx context.Context, requestID uint32) (*agent.RequestResult, error) {
	panic("not expected")
}

func (f *fakeSession) SetOS(ctx context.Context, change agent.OSChange) error {
	return f.setOS(ctx, change)
}

type fakeSessions struct {
	worker   func(ctx context.Context, w *models.Worker) (scheduler.AgentSession, error)
	hostNode func(ctx context.Context) (scheduler.AgentSession, error)
}

func (f *fakeSessions) Worker(ctx context.Context, w *models.Worker) (scheduler.AgentSession, error) {
	return f.worker(ctx, w)
}

func (f *fakeSessions) HostNode(ctx context.Context) (scheduler.AgentSession, error) {
	return f.hostNode(ctx)
}

type fakeIdentity struct {
	address string
}

func (f *fakeIdentity) Address() string { return f.address }
