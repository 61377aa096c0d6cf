package blockchain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
)

const nftContract = "0x0000000000000000000000000000000000000042"

func TestMintNextSubmitsAndRecords(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	var recorded *string
	projects := &fakeProjectRepo{
		getNextUnminted: func(ctx context.Context) (*models.Project, error) {
			return &models.Project{ID: 7, Name: "demo", Owner: "eth:abcdef0123456789abcdef0123456789abcdef01"}, nil
		},
		updateNFTMint: func(ctx context.Context, name string, tx *string) error {
			assert.Equal(t, "demo", name)
			recorded = tx
			return nil
		},
	}
	backend := &fakeTxBackend{}

	m := NewMinter(backend, projects, nftContract, key, 0, discardLogger())
	m.mintNext(context.Background())

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	require.NotNil(t, tx.To())
	assert.Equal(t, common.HexToAddress(nftContract), *tx.To())

	expected, err := miniAppABI.Pack("mint", buyer, big.NewInt(7), "demo")
	require.NoError(t, err)
	assert.Equal(t, expected, tx.Data())

	require.NotNil(t, recorded)
	assert.Equal(t, tx.Hash().Hex(), *recorded)
}

func TestMintFailureLeavesProjectUnminted(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	projects := &fakeProjectRepo{
		getNextUnminted: func(ctx context.Context) (*models.Project, error) {
			return &models.Project{ID: 7, Name: "demo", Owner: "eth:abcdef0123456789abcdef0123456789abcdef01"}, nil
		},
		updateNFTMint: func(ctx context.Context, name string, tx *string) error {
			t.Fatal("failed mints must not be recorded")
			return nil
		},
	}
	backend := &fakeTxBackend{fail: assert.AnError}

	m := NewMinter(backend, projects, nftContract, key, 0, discardLogger())
	m.mintNext(context.Background())
}

func TestMintSkipsUnparsableOwner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	projects := &fakeProjectRepo{
		getNextUnminted: func(ctx context.Context) (*models.Project, error) {
			return &models.Project{ID: 7, Name: "demo", Owner: "not-an-address"}, nil
		},
	}
	backend := &fakeTxBackend{}

	m := NewMinter(backend, projects, nftContract, key, 0, discardLogger())
	m.mintNext(context.Background())

	assert.Empty(t, backend.sent)
}

func TestMintNothingPendingIsQuiet(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	projects := &fakeProjectRepo{
		getNextUnminted: func(ctx context.Context) (*models.Project, error) { return nil, nil },
	}
	backend := &fakeTxBackend{}

	m := NewMinter(backend, projects, nftContract, key, 0, discardLogger())
	m.mintNext(context.Background())

	assert.Empty(t, backend.sent)
}
