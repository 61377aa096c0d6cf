package blockchain

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/OpenxAI-Network/miniapp-factory/internal/repository"
)

// resubscribeDelay is how long the sync waits before reopening a dropped
// log subscription.
const resubscribeDelay = 5 * time.Second

// LogSubscriber is the slice of the eth client the NFT sync needs.
// *ethclient.Client satisfies it.
type LogSubscriber interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

// NFTSync mirrors on-chain NFT ownership into the project store. Every
// Transfer of a project token rewrites the project's owner, so selling the
// NFT hands over the mini app.
type NFTSync struct {
	client   LogSubscriber
	projects repository.ProjectRepository
	contract common.Address
	logger   *slog.Logger
}

// NewNFTSync creates an ownership sync against the given NFT contract.
func NewNFTSync(client LogSubscriber, projects repository.ProjectRepository, contract string, logger *slog.Logger) *NFTSync {
	return &NFTSync{
		client:   client,
		projects: projects,
		contract: common.HexToAddress(contract),
		logger:   logger.With("component", "nft-sync"),
	}
}

// Run subscribes to Transfer events and applies them until ctx is done.
// A dropped subscription is reopened; a bad event is logged and skipped.
func (s *NFTSync) Run(ctx context.Context) {
	for {
		if err := s.subscribe(ctx); err != nil {
			s.logger.Error("transfer subscription lost", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeDelay):
		}
	}
}

func (s *NFTSync) subscribe(ctx context.Context) error {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{s.contract},
		Topics:    [][]common.Hash{{transferEventID}},
	}

	logs := make(chan types.Log)
	sub, err := s.client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	s.logger.Info("watching nft transfers", "contract", s.contract.Hex())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case event := <-logs:
			s.handleTransfer(ctx, event)
		}
	}
}

// handleTransfer applies a single Transfer event. Mint transfers (from the
// zero address) are skipped, the project was just created with the right
// owner.
func (s *NFTSync) handleTransfer(ctx context.Context, event types.Log) {
	if len(event.Topics) != 4 {
		s.logger.Warn("transfer event with unexpected topics", "topics", len(event.Topics))
		return
	}

	from := common.BytesToAddress(event.Topics[1].Bytes())
	to := common.BytesToAddress(event.Topics[2].Bytes())
	tokenID := event.Topics[3].Big()

	if from == (common.Address{}) {
		return
	}

	if !tokenID.IsInt64() || tokenID.Int64() > math.MaxInt32 {
		s.logger.Error("transfer of token id outside project range", "token_id", tokenID.String())
		return
	}
	id := int32(tokenID.Int64())

	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("could not load project for transfer", "token_id", id, "error", err)
		return
	}
	if project == nil {
		s.logger.Error("TRANSFER OF NON-EXISTENT PROJECT", "token_id", id, "to", to.Hex())
		return
	}

	owner := ownerAccount(to)
	if err := s.projects.UpdateOwner(ctx, project.Name, owner); err != nil {
		s.logger.Error("could not update project owner", "project", project.Name, "owner", owner, "error", err)
		return
	}

	s.logger.Info("project ownership transferred", "project", project.Name, "owner", owner)
}
