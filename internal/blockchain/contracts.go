// Package blockchain keeps the store in sync with the chain: project
// ownership follows NFT transfers, fresh projects get minted, and OPENX
// deposits credit the ledger.
package blockchain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const miniAppABIJSON = `[
	{
		"type": "event",
		"name": "Transfer",
		"inputs": [
			{"name": "from", "type": "address", "indexed": true},
			{"name": "to", "type": "address", "indexed": true},
			{"name": "tokenId", "type": "uint256", "indexed": true}
		]
	},
	{
		"type": "function",
		"name": "mint",
		"inputs": [
			{"name": "account", "type": "address"},
			{"name": "tokenId", "type": "uint256"},
			{"name": "name", "type": "string"}
		]
	}
]`

const depositABIJSON = `[
	{
		"type": "event",
		"name": "Deposited",
		"inputs": [
			{"name": "account", "type": "address", "indexed": true},
			{"name": "amount", "type": "uint256", "indexed": false}
		]
	}
]`

var (
	miniAppABI = mustParseABI(miniAppABIJSON)
	depositABI = mustParseABI(depositABIJSON)

	transferEventID  = miniAppABI.Events["Transfer"].ID
	depositedEventID = depositABI.Events["Deposited"].ID
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ownerAccount renders an address in the store's owner encoding,
// "eth:" followed by the lowercase 40-hex address.
func ownerAccount(addr common.Address) string {
	return "eth:" + strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x"))
}

// ownerAddress parses the store's owner encoding back into an address.
func ownerAddress(owner string) (common.Address, bool) {
	hex := strings.TrimPrefix(owner, "eth:")
	if len(hex) != 40 || !common.IsHexAddress(hex) {
		return common.Address{}, false
	}
	return common.HexToAddress(hex), true
}
