package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// creditLedgerABI covers the calls and events of the hydrogen credit contract
const creditLedgerABI = `[
{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"factoryId","type":"string"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"safeTransferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"id","type":"uint256"},{"name":"amount","type":"uint256"},{"name":"data","type":"bytes"}],"outputs":[]},
{"type":"function","name":"retire","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"getTokenDetails","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"tokenId","type":"uint256"},{"name":"creator","type":"address"},{"name":"creationTime","type":"uint256"},{"name":"factoryId","type":"string"},{"name":"currentOwner","type":"address"},{"name":"lastTransferTime","type":"uint256"},{"name":"isRetired","type":"bool"},{"name":"retirementTime","type":"uint256"},{"name":"retiredBy","type":"address"}]},
{"type":"function","name":"getTokenHistory","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"owners","type":"address[]"},{"name":"timestamps","type":"uint256[]"}]},
{"type":"function","name":"getActiveTokensByOwner","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
{"type":"function","name":"getTokensByFactory","stateMutability":"view","inputs":[{"name":"factoryId","type":"string"}],"outputs":[{"name":"","type":"uint256[]"}]},
{"type":"function","name":"getAllTokenIds","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256[]"}]},
{"type":"function","name":"getPaginatedTokens","stateMutability":"view","inputs":[{"name":"offset","type":"uint256"},{"name":"limit","type":"uint256"}],"outputs":[{"name":"tokenIds","type":"uint256[]"},{"name":"total","type":"uint256"}]},
{"type":"function","name":"getRetiredTokens","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256[]"}]},
{"type":"function","name":"getTotalTokens","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"event","name":"TokenMinted","anonymous":false,"inputs":[{"name":"tokenId","type":"uint256","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"factoryId","type":"string","indexed":false}]},
{"type":"event","name":"TransferSingle","anonymous":false,"inputs":[{"name":"operator","type":"address","indexed":true},{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"id","type":"uint256","indexed":false},{"name":"value","type":"uint256","indexed":false}]},
{"type":"event","name":"TokenRetired","anonymous":false,"inputs":[{"name":"tokenId","type":"uint256","indexed":true},{"name":"retiredBy","type":"address","indexed":true}]}
]`

const (
	eventTokenMinted    = "TokenMinted"
	eventTransferSingle = "TransferSingle"
	eventTokenRetired   = "TokenRetired"
)

// ParseABI returns the parsed contract ABI
func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(creditLedgerABI))
}

// eventIDs returns the topic hashes of the events the service consumes
func eventIDs(parsed abi.ABI) []common.Hash {
	return []common.Hash{
		parsed.Events[eventTokenMinted].ID,
		parsed.Events[eventTransferSingle].ID,
		parsed.Events[eventTokenRetired].ID,
	}
}
