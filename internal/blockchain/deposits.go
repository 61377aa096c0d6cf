package blockchain

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
	"github.com/OpenxAI-Network/miniapp-factory/internal/repository"
)

// DepositListener credits the ledger for OPENX deposits. Each Deposited
// event becomes one positive ledger entry for the depositing account.
type DepositListener struct {
	client   LogSubscriber
	credits  repository.CreditRepository
	contract common.Address
	logger   *slog.Logger
}

// NewDepositListener creates a listener against the deposit contract.
func NewDepositListener(client LogSubscriber, credits repository.CreditRepository, contract string, logger *slog.Logger) *DepositListener {
	return &DepositListener{
		client:   client,
		credits:  credits,
		contract: common.HexToAddress(contract),
		logger:   logger.With("component", "deposit-listener"),
	}
}

// Run subscribes to Deposited events and applies them until ctx is done.
func (l *DepositListener) Run(ctx context.Context) {
	for {
		if err := l.subscribe(ctx); err != nil {
			l.logger.Error("deposit subscription lost", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeDelay):
		}
	}
}

func (l *DepositListener) subscribe(ctx context.Context) error {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{l.contract},
		Topics:    [][]common.Hash{{depositedEventID}},
	}

	logs := make(chan types.Log)
	sub, err := l.client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	l.logger.Info("watching deposits", "contract", l.contract.Hex())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case event := <-logs:
			l.handleDeposit(ctx, event)
		}
	}
}

// handleDeposit credits a single deposit. Amounts that do not fit the
// ledger's int64 column are logged and dropped.
func (l *DepositListener) handleDeposit(ctx context.Context, event types.Log) {
	if len(event.Topics) != 2 {
		l.logger.Warn("deposit event with unexpected topics", "topics", len(event.Topics))
		return
	}

	account := common.BytesToAddress(event.Topics[1].Bytes())
	amount := new(big.Int).SetBytes(event.Data)

	if !amount.IsInt64() {
		l.logger.Error("deposit amount outside ledger range",
			"account", account.Hex(), "amount", amount.String(), "tx", event.TxHash.Hex())
		return
	}

	credit := &models.Credit{
		Account:     ownerAccount(account),
		Credits:     amount.Int64(),
		Description: "OPENX deposit " + event.TxHash.Hex(),
		Date:        time.Now().Unix(),
	}
	if err := l.credits.Insert(ctx, credit); err != nil {
		l.logger.Error("could not credit deposit",
			"account", credit.Account, "amount", credit.Credits, "tx", event.TxHash.Hex(), "error", err)
		return
	}

	l.logger.Info("deposit credited", "account", credit.Account, "amount", credit.Credits)
}
