package fetcher

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/avantgarde-labs/riskmon/internal/config"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

// EVMClients lazily dials and caches one JSON-RPC client per chain.
// Clients are safe for concurrent use and live for the process lifetime.
type EVMClients struct {
	mu      sync.Mutex
	clients map[types.Chain]*ethclient.Client
}

// NewEVMClients builds an empty client pool.
func NewEVMClients() *EVMClients {
	return &EVMClients{clients: make(map[types.Chain]*ethclient.Client)}
}

// Client returns the cached client for a chain, dialing on first use.
// Chains without an RPC endpoint (e.g. solana) yield a terminal error.
func (c *EVMClients) Client(ctx context.Context, chain types.Chain) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[chain]; ok {
		return client, nil
	}

	url := config.RPCURL(chain)
	if url == "" {
		return nil, fmt.Errorf("no RPC endpoint configured for chain %s", chain)
	}

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s rpc: %w", chain, err)
	}
	c.clients[chain] = client
	return client, nil
}

// Close releases every dialed client.
func (c *EVMClients) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, client := range c.clients {
		client.Close()
	}
	c.clients = make(map[types.Chain]*ethclient.Client)
}

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded ABI: %v", err))
	}
	return parsed
}

// Minimal ABIs for the contract surfaces the fetchers read.
var (
	// Chainlink AggregatorV3Interface.
	aggregatorABI = mustABI(`[
		{"name":"latestRoundData","type":"function","stateMutability":"view","inputs":[],"outputs":[
			{"name":"roundId","type":"uint80"},{"name":"answer","type":"int256"},
			{"name":"startedAt","type":"uint256"},{"name":"updatedAt","type":"uint256"},
			{"name":"answeredInRound","type":"uint80"}]},
		{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
	]`)

	erc20ABI = mustABI(`[
		{"name":"totalSupply","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
	]`)

	// AaveProtocolDataProvider.getReserveData.
	aaveDataProviderABI = mustABI(`[
		{"name":"getReserveData","type":"function","stateMutability":"view",
		 "inputs":[{"name":"asset","type":"address"}],
		 "outputs":[
			{"name":"unbacked","type":"uint256"},{"name":"accruedToTreasuryScaled","type":"uint256"},
			{"name":"totalAToken","type":"uint256"},{"name":"totalStableDebt","type":"uint256"},
			{"name":"totalVariableDebt","type":"uint256"},{"name":"liquidityRate","type":"uint256"},
			{"name":"variableBorrowRate","type":"uint256"},{"name":"stableBorrowRate","type":"uint256"},
			{"name":"averageStableBorrowRate","type":"uint256"},{"name":"liquidityIndex","type":"uint256"},
			{"name":"variableBorrowIndex","type":"uint256"},{"name":"lastUpdateTimestamp","type":"uint40"}]}
	]`)

	// Compound v3 Comet totals.
	cometABI = mustABI(`[
		{"name":"totalSupply","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"totalBorrow","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
	]`)
)

// callContract packs a view call, executes it and unpacks the outputs.
func callContract(ctx context.Context, client *ethclient.Client, contract string, parsed abi.ABI, method string, args ...any) ([]any, error) {
	input, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	to := common.HexToAddress(contract)
	output, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, contract, err)
	}

	results, err := parsed.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return results, nil
}

// bigToFloat converts a raw token amount to a float using the given decimals.
func bigToFloat(v *big.Int, decimals uint8) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), big.NewFloat(math.Pow10(int(decimals)))).Float64()
	return f
}
