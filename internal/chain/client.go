package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"flowmap/internal/config"
	"flowmap/internal/domain"
	"flowmap/internal/metrics"
	"flowmap/internal/units"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"gitlab.com/nevasik7/alerting/logger"
)

// keccak256("Transfer(address,address,uint256)")
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

var ErrEmptyResult = errors.New("empty result from rpc endpoint")

// rpcCaller is the slice of go-ethereum's rpc.Client we use; tests swap in
// a mock instead of a live node.
type rpcCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

type Client struct {
	rpc     rpcCaller
	log     logger.Logger
	timeout time.Duration
}

// Raw eth_getLogs record, hex fields decoded by hexutil
type rawLog struct {
	Address     common.Address `json:"address"`
	Topics      []common.Hash  `json:"topics"`
	Data        hexutil.Bytes  `json:"data"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	TxHash      common.Hash    `json:"transactionHash"`
	LogIndex    hexutil.Uint64 `json:"logIndex"`
}

type logFilter struct {
	FromBlock string        `json:"fromBlock"`
	ToBlock   string        `json:"toBlock"`
	Address   string        `json:"address"`
	Topics    []common.Hash `json:"topics"`
}

func Dial(ctx context.Context, log logger.Logger, cfg *config.ChainConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("chain config is required")
	}

	rc, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc endpoint: %w", err)
	}

	return NewClient(rc, log, cfg.Timeout), nil
}

func NewClient(caller rpcCaller, log logger.Logger, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{rpc: caller, log: log, timeout: timeout}
}

func (c *Client) Close() {
	if closer, ok := c.rpc.(interface{ Close() }); ok {
		closer.Close()
	}
}

// FetchTransferEvents queries Transfer logs for tokenAddress over the last
// blocksBack blocks in a single eth_getLogs call. No retry and no range
// splitting: an oversized window fails the run instead of degrading.
func (c *Client) FetchTransferEvents(ctx context.Context, tokenAddress string, blocksBack uint64) ([]domain.TransferEvent, error) {
	head, err := c.latestBlock(ctx)
	if err != nil {
		return nil, err
	}

	from := units.BlockRangeStart(head, blocksBack)

	filter := logFilter{
		FromBlock: hexutil.EncodeBig(from),
		ToBlock:   hexutil.EncodeBig(head),
		Address:   strings.ToLower(tokenAddress),
		Topics:    []common.Hash{transferTopic},
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var logs []rawLog
	err = c.rpc.CallContext(callCtx, &logs, "eth_getLogs", filter)
	metrics.RPCCalls.WithLabelValues("eth_getLogs", callStatus(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs [%s, %s] failed: %w", filter.FromBlock, filter.ToBlock, err)
	}

	events := make([]domain.TransferEvent, 0, len(logs))
	for _, l := range logs {
		// indexed from/to plus the signature itself
		if len(l.Topics) < 3 {
			c.log.Warnf("Skipping log %s: %d topics, not an indexed transfer", l.TxHash.Hex(), len(l.Topics))
			continue
		}

		events = append(events, domain.TransferEvent{
			Contract:    strings.ToLower(l.Address.Hex()),
			From:        topicToAddress(l.Topics[1]),
			To:          topicToAddress(l.Topics[2]),
			RawAmount:   new(big.Int).SetBytes(l.Data),
			BlockNumber: uint64(l.BlockNumber),
			TxHash:      l.TxHash.Hex(),
			LogIndex:    uint32(l.LogIndex),
		})
	}

	c.log.Infof("Fetched %d transfer logs for %s in range [%s, %s]", len(events), filter.Address, filter.FromBlock, filter.ToBlock)
	return events, nil
}

func (c *Client) latestBlock(ctx context.Context) (*big.Int, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var headHex string
	err := c.rpc.CallContext(callCtx, &headHex, "eth_blockNumber")
	metrics.RPCCalls.WithLabelValues("eth_blockNumber", callStatus(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("eth_blockNumber failed: %w", err)
	}
	if headHex == "" {
		return nil, fmt.Errorf("eth_blockNumber: %w", ErrEmptyResult)
	}

	head, err := hexutil.DecodeBig(headHex)
	if err != nil {
		return nil, fmt.Errorf("eth_blockNumber returned %q: %w", headHex, err)
	}

	return head, nil
}

// An address topic is the 20-byte address left-padded to 32 bytes;
// BytesToAddress keeps the low 20.
func topicToAddress(h common.Hash) string {
	return strings.ToLower(common.BytesToAddress(h.Bytes()).Hex())
}

func callStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
