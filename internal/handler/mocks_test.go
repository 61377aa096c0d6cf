package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"

	"github.com/OpenxAI-Network/miniapp-factory/internal/middleware"
	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
)

// fakeFactory implements service.FactoryService with function fields.
type fakeFactory struct {
	owner              func() string
	userProjects       func(ctx context.Context, account string) ([]string, error)
	userCredits        func(ctx context.Context, account string) (int64, error)
	projectAvailable   func(ctx context.Context, name string) (bool, error)
	projectPrice       func(ctx context.Context, account string) (int64, error)
	createProject      func(ctx context.Context, account, name string) error
	changeProject      func(ctx context.Context, account, name, instructions string) (int32, error)
	history            func(ctx context.Context, name string) ([]*models.Deployment, error)
	resetProject       func(ctx context.Context, account, name string, deployment *int32) (uint32, error)
	setAccountAssoc    func(ctx context.Context, account, name string, assoc *models.AccountAssociation) (uint32, error)
	setBaseBuild       func(ctx context.Context, account, name string, build *models.BaseBuild) (uint32, error)
	llmOutput          func(ctx context.Context, deployment int32) (string, error)
	queuePosition      func(ctx context.Context, deployment int32) (int64, error)
	redeemPromoCode    func(ctx context.Context, account, code string) error
	addPromoCodesBatch func(ctx context.Context, payload json.RawMessage, signature string) error
}

func (f *fakeFactory) Owner() string { return f.owner() }

func (f *fakeFactory) UserProjects(ctx context.Context, account string) ([]string, error) {
	return f.userProjects(ctx, account)
}

func (f *fakeFactory) UserCredits(ctx context.Context, account string) (int64, error) {
	return f.userCredits(ctx, account)
}

func (f *fakeFactory) ProjectAvailable(ctx context.Context, name string) (bool, error) {
	return f.projectAvailable(ctx, name)
}

func (f *fakeFactory) ProjectPrice(ctx context.Context, account string) (int64, error) {
	return f.projectPrice(ctx, account)
}

func (f *fakeFactory) CreateProject(ctx context.Context, account, name string) error {
	return f.createProject(ctx, account, name)
}

func (f *fakeFactory) ChangeProject(ctx context.Context, account, name, instructions string) (int32, error) {
	return f.changeProject(ctx, account, name, instructions)
}

func (f *fakeFactory) History(ctx context.Context, name string) ([]*models.Deployment, error) {
	return f.history(ctx, name)
}

func (f *fakeFactory) ResetProject(ctx context.Context, account, name string, deployment *int32) (uint32, error) {
	return f.resetProject(ctx, account, name, deployment)
}

func (f *fakeFactory) SetAccountAssociation(ctx context.Context, account, name string, assoc *models.AccountAssociation) (uint32, error) {
	return f.setAccountAssoc(ctx, account, name, assoc)
}

func (f *fakeFactory) SetBaseBuild(ctx context.Context, account, name string, build *models.BaseBuild) (uint32, error) {
	return f.setBaseBuild(ctx, account, name, build)
}

func (f *fakeFactory) LLMOutput(ctx context.Context, deployment int32) (string, error) {
	return f.llmOutput(ctx, deployment)
}

func (f *fakeFactory) QueuePosition(ctx context.Context, deployment int32) (int64, error) {
	return f.queuePosition(ctx, deployment)
}

func (f *fakeFactory) RedeemPromoCode(ctx context.Context, account, code string) error {
	return f.redeemPromoCode(ctx, account, code)
}

func (f *fakeFactory) AddPromoCodes(ctx context.Context, payload json.RawMessage, signature string) error {
	return f.addPromoCodesBatch(ctx, payload, signature)
}

type fakeWaitlistRepo struct {
	getByAccount func(ctx context.Context, account string) (*models.WaitlistEntry, error)
	getByIP      func(ctx context.Context, ip string) (*models.WaitlistEntry, error)
	insert       func(ctx context.Context, entry *models.WaitlistEntry) error
}

func (f *fakeWaitlistRepo) GetAll(ctx context.Context) ([]*models.WaitlistEntry, error) {
	panic("not expected")
}

func (f *fakeWaitlistRepo) GetByAccount(ctx context.Context, account string) (*models.WaitlistEntry, error) {
	return f.getByAccount(ctx, account)
}

func (f *fakeWaitlistRepo) GetByIP(ctx context.Context, ip string) (*models.WaitlistEntry, error) {
	return f.getByIP(ctx, ip)
}

func (f *fakeWaitlistRepo) Insert(ctx context.Context, entry *models.WaitlistEntry) error {
	return f.insert(ctx, entry)
}

// serve mounts the routes the way main does and performs one request.
func serve(routes chi.Router, mount string, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(middleware.Auth())
	r.Mount(mount, routes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}
