package prices

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Minimal Uniswap V2 pair ABI, just getReserves.
const pairABIJSON = `[{"constant":true,"inputs":[],"name":"getReserves","outputs":[{"name":"_reserve0","type":"uint112"},{"name":"_reserve1","type":"uint112"},{"name":"_blockTimestampLast","type":"uint32"}],"payable":false,"stateMutability":"view","type":"function"}]`

const (
	usdcDecimals = 6
	wethDecimals = 18
)

// UniswapClient reads the ETH spot price from a Uniswap V2 USDC/WETH pair
// on-chain. token0 of the canonical pair is USDC, token1 is WETH.
type UniswapClient struct {
	rpc      *ethclient.Client
	pairAddr common.Address
	pairABI  abi.ABI
	logger   *zap.Logger
}

// NewUniswapClient dials the Ethereum RPC endpoint and prepares the pair ABI.
func NewUniswapClient(rpcURL, pairAddr string, logger *zap.Logger) (*UniswapClient, error) {
	rpc, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}

	pABI, err := abi.JSON(strings.NewReader(pairABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse pair ABI: %w", err)
	}

	return &UniswapClient{
		rpc:      rpc,
		pairAddr: common.HexToAddress(pairAddr),
		pairABI:  pABI,
		logger:   logger,
	}, nil
}

// GetETHPrice derives the USD price of ETH from the pair reserves.
func (u *UniswapClient) GetETHPrice(ctx context.Context) (float64, error) {
	data, err := u.pairABI.Pack("getReserves")
	if err != nil {
		return 0, fmt.Errorf("pack getReserves: %w", err)
	}

	out, err := u.rpc.CallContract(ctx, ethereum.CallMsg{To: &u.pairAddr, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("getReserves call: %w", err)
	}

	vals, err := u.pairABI.Unpack("getReserves", out)
	if err != nil {
		return 0, fmt.Errorf("unpack getReserves: %w", err)
	}
	if len(vals) < 2 {
		return 0, fmt.Errorf("unexpected getReserves result")
	}

	reserveUSDC, ok0 := vals[0].(*big.Int)
	reserveWETH, ok1 := vals[1].(*big.Int)
	if !ok0 || !ok1 {
		return 0, fmt.Errorf("unexpected getReserves types")
	}

	usdc := toFloat(reserveUSDC, usdcDecimals)
	weth := toFloat(reserveWETH, wethDecimals)
	if weth == 0 {
		return 0, fmt.Errorf("empty WETH reserve")
	}

	price := usdc / weth
	if price <= 0 {
		return 0, fmt.Errorf("invalid price: %f", price)
	}

	u.logger.Debug("uniswap reserve read",
		zap.Float64("usdc_reserve", usdc),
		zap.Float64("weth_reserve", weth),
		zap.Float64("price", price))

	return price, nil
}

// Close releases the RPC connection.
func (u *UniswapClient) Close() {
	u.rpc.Close()
}

func toFloat(wei *big.Int, decimals int) float64 {
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), divisor).Float64()
	return f
}
