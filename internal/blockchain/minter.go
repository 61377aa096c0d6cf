package blockchain

import (
	"context"
	"crypto/ecdsa"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/OpenxAI-Network/miniapp-factory/internal/repository"
)

// TxBackend is the slice of the eth client the minter needs to build, sign
// and submit mint transactions. *ethclient.Client satisfies it.
type TxBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Minter mints one NFT per project, token id equal to the project's serial
// id, so ownership becomes tradeable. It drains the unminted backlog one
// project per tick.
type Minter struct {
	client   TxBackend
	projects repository.ProjectRepository
	contract common.Address
	key      *ecdsa.PrivateKey
	tick     time.Duration
	logger   *slog.Logger
}

// NewMinter creates a minter signing with key against the NFT contract.
func NewMinter(client TxBackend, projects repository.ProjectRepository, contract string, key *ecdsa.PrivateKey, tick time.Duration, logger *slog.Logger) *Minter {
	return &Minter{
		client:   client,
		projects: projects,
		contract: common.HexToAddress(contract),
		key:      key,
		tick:     tick,
		logger:   logger.With("component", "nft-minter"),
	}
}

// Run mints pending projects until ctx is done.
func (m *Minter) Run(ctx context.Context) {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mintNext(ctx)
		}
	}
}

// mintNext mints the oldest project without a recorded mint transaction.
// A failed mint is logged loudly and retried on the next tick.
func (m *Minter) mintNext(ctx context.Context) {
	project, err := m.projects.GetNextUnminted(ctx)
	if err != nil {
		m.logger.Error("could not fetch next unminted project", "error", err)
		return
	}
	if project == nil {
		return
	}

	to, ok := ownerAddress(project.Owner)
	if !ok {
		m.logger.Error("project owner is not a mintable address", "project", project.Name, "owner", project.Owner)
		return
	}

	tx, err := m.mint(ctx, to, project.ID, project.Name)
	if err != nil {
		m.logger.Error("MINT TRANSACTION FAILED",
			"token_id", project.ID, "project", project.Name, "to", to.Hex(), "error", err)
		return
	}

	hash := tx.Hash().Hex()
	if err := m.projects.UpdateNFTMint(ctx, project.Name, &hash); err != nil {
		m.logger.Error("could not record mint transaction", "project", project.Name, "tx", hash, "error", err)
		return
	}

	m.logger.Info("project nft minted", "project", project.Name, "token_id", project.ID, "to", to.Hex(), "tx", hash)
}

func (m *Minter) mint(ctx context.Context, to common.Address, tokenID int32, name string) (*types.Transaction, error) {
	data, err := miniAppABI.Pack("mint", to, big.NewInt(int64(tokenID)), name)
	if err != nil {
		return nil, err
	}

	from := crypto.PubkeyToAddress(m.key.PublicKey)

	chainID, err := m.client.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	nonce, err := m.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, err
	}
	gasPrice, err := m.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	gasLimit, err := m.client.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &m.contract,
		Data: data,
	})
	if err != nil {
		return nil, err
	}

	tx := types.NewTransaction(nonce, m.contract, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), m.key)
	if err != nil {
		return nil, err
	}

	if err := m.client.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}
	return signed, nil
}
