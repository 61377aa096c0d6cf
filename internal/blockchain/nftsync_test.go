package blockchain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
)

var (
	seller = common.HexToAddress("0x1111111111111111111111111111111111111111")
	buyer  = common.HexToAddress("0xAbCdEf0123456789aBcDeF0123456789AbCdEf01")
)

func TestTransferRewritesOwner(t *testing.T) {
	var owner string
	projects := &fakeProjectRepo{
		getByID: func(ctx context.Context, id int32) (*models.Project, error) {
			assert.Equal(t, int32(7), id)
			return &models.Project{ID: 7, Name: "demo", Owner: "eth:1111111111111111111111111111111111111111"}, nil
		},
		updateOwner: func(ctx context.Context, name, newOwner string) error {
			assert.Equal(t, "demo", name)
			owner = newOwner
			return nil
		},
	}

	s := NewNFTSync(nil, projects, "0x0000000000000000000000000000000000000042", discardLogger())
	s.handleTransfer(context.Background(), transferLog(t, seller, buyer, big.NewInt(7)))

	require.Equal(t, "eth:abcdef0123456789abcdef0123456789abcdef01", owner)
}

func TestTransferSkipsMints(t *testing.T) {
	projects := &fakeProjectRepo{
		getByID: func(ctx context.Context, id int32) (*models.Project, error) {
			t.Fatal("mint transfers must not touch the store")
			return nil, nil
		},
	}

	s := NewNFTSync(nil, projects, "0x42", discardLogger())
	s.handleTransfer(context.Background(), transferLog(t, common.Address{}, buyer, big.NewInt(7)))
}

func TestTransferDropsOversizedTokenID(t *testing.T) {
	projects := &fakeProjectRepo{
		getByID: func(ctx context.Context, id int32) (*models.Project, error) {
			t.Fatal("oversized token ids must be dropped")
			return nil, nil
		},
	}

	huge := new(big.Int).Lsh(big.NewInt(1), 40)
	s := NewNFTSync(nil, projects, "0x42", discardLogger())
	s.handleTransfer(context.Background(), transferLog(t, seller, buyer, huge))
}

func TestTransferOfUnknownProjectIsIgnored(t *testing.T) {
	projects := &fakeProjectRepo{
		getByID: func(ctx context.Context, id int32) (*models.Project, error) {
			return nil, nil
		},
		updateOwner: func(ctx context.Context, name, owner string) error {
			t.Fatal("unknown projects must not be updated")
			return nil
		},
	}

	s := NewNFTSync(nil, projects, "0x42", discardLogger())
	s.handleTransfer(context.Background(), transferLog(t, seller, buyer, big.NewInt(999)))
}
