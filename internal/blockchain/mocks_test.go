package blockchain

import (
	"context"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeProjectRepo struct {
	getByName       func(ctx context.Context, name string) (*models.Project, error)
	getByID         func(ctx context.Context, id int32) (*models.Project, error)
	getNextUnminted func(ctx context.Context) (*models.Project, error)
	updateOwner     func(ctx context.Context, name, owner string) error
	updateNFTMint   func(ctx context.Context, name string, tx *string) error
}

func (f *fakeProjectRepo) GetByName(ctx context.Context, name string) (*models.Project, error) {
	return f.getByName(ctx, name)
}

func (f *fakeProjectRepo) GetByID(ctx context.Context, id int32) (*models.Project, error) {
	return f.getByID(ctx, id)
}

func (f *fakeProjectRepo) GetAll(ctx context.Context) ([]*models.Project, error) {
	panic("not expected")
}

func (f *fakeProjectRepo) GetCount(ctx context.Context) (int64, error) {
	panic("not expected")
}

func (f *fakeProjectRepo) GetAllByOwner(ctx context.Context, owner string) ([]*models.Project, error) {
	panic("not expected")
}

func (f *fakeProjectRepo) GetNextUnminted(ctx context.Context) (*models.Project, error) {
	return f.getNextUnminted(ctx)
}

func (f *fakeProjectRepo) Insert(ctx context.Context, project *models.Project) error {
	panic("not expected")
}

func (f *fakeProjectRepo) UpdateOwner(ctx context.Context, name, owner string) error {
	return f.updateOwner(ctx, name, owner)
}

func (f *fakeProjectRepo) UpdateAccountAssociation(ctx context.Context, name string, assoc *models.AccountAssociation) error {
	panic("not expected")
}

func (f *fakeProjectRepo) UpdateBaseBuild(ctx context.Context, name string, build *models.BaseBuild) error {
	panic("not expected")
}

func (f *fakeProjectRepo) UpdateVersion(ctx context.Context, name string, version *string) error {
	panic("not expected")
}

func (f *fakeProjectRepo) UpdateNFTMint(ctx context.Context, name string, tx *string) error {
	return f.updateNFTMint(ctx, name, tx)
}

type fakeCreditRepo struct {
	insert func(ctx context.Context, credit *models.Credit) error
}

func (f *fakeCreditRepo) GetTotalCreditsByAccount(ctx context.Context, account string) (int64, error) {
	panic("not expected")
}

func (f *fakeCreditRepo) GetAllByAccount(ctx context.Context, account string) ([]*models.Credit, error) {
	panic("not expected")
}

func (f *fakeCreditRepo) Insert(ctx context.Context, credit *models.Credit) error {
	return f.insert(ctx, credit)
}

type fakeTxBackend struct {
	sent []*types.Transaction
	fail error
}

func (f *fakeTxBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1337), nil
}

func (f *fakeTxBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 9, nil
}

func (f *fakeTxBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeTxBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeTxBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, tx)
	return nil
}

func transferLog(t *testing.T, from, to common.Address, tokenID *big.Int) types.Log {
	t.Helper()
	return types.Log{
		Topics: []common.Hash{
			transferEventID,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
			common.BigToHash(tokenID),
		},
	}
}
