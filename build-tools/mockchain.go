//go:build ignore

// Run: go run ./build-tools/mockchain.go -addr :8545 -token 0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48 -head 1000000 -logs-per-block 3
//
// Fake JSON-RPC node for local runs: answers eth_blockNumber with a fixed
// head and eth_getLogs with deterministic Transfer logs, so flowmap can be
// exercised without an API key. Point RPC_URL at it.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
)

const transferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type logRecord struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber string   `json:"blockNumber"`
	TxHash      string   `json:"transactionHash"`
	LogIndex    string   `json:"logIndex"`
}

type logFilter struct {
	FromBlock string `json:"fromBlock"`
	ToBlock   string `json:"toBlock"`
	Address   string `json:"address"`
}

func main() {
	var (
		addr         = flag.String("addr", ":8545", "listen address")
		token        = flag.String("token", "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", "token contract address")
		head         = flag.Uint64("head", 1_000_000, "latest block number to report")
		logsPerBlock = flag.Int("logs-per-block", 3, "synthetic transfers per block")
		seed         = flag.Int64("seed", 42, "rng seed, same seed same chain")
	)
	flag.Parse()

	srv := &mockNode{
		token:        strings.ToLower(*token),
		head:         *head,
		logsPerBlock: *logsPerBlock,
		seed:         *seed,
	}

	log.Printf("mockchain listening on %s, head=%d, token=%s", *addr, *head, srv.token)
	log.Fatal(http.ListenAndServe(*addr, srv))
}

type mockNode struct {
	token        string
	head         uint64
	logsPerBlock int
	seed         int64
}

func (n *mockNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "eth_blockNumber":
		resp.Result = hexUint(n.head)
	case "eth_getLogs":
		var filter logFilter
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params[0], &filter); err != nil {
				resp.Error = &rpcError{Code: -32602, Message: err.Error()}
				break
			}
		}
		logs, err := n.logsFor(filter)
		if err != nil {
			resp.Error = &rpcError{Code: -32602, Message: err.Error()}
			break
		}
		resp.Result = logs
	default:
		resp.Error = &rpcError{Code: -32601, Message: "method not found"}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *mockNode) logsFor(filter logFilter) ([]logRecord, error) {
	from, err := parseHexUint(filter.FromBlock)
	if err != nil {
		return nil, fmt.Errorf("bad fromBlock: %w", err)
	}
	to := n.head
	if filter.ToBlock != "" && filter.ToBlock != "latest" {
		if to, err = parseHexUint(filter.ToBlock); err != nil {
			return nil, fmt.Errorf("bad toBlock: %w", err)
		}
	}
	if to > n.head {
		to = n.head
	}

	// a fixed pool of wallets plus a few addresses meant to be listed in
	// protocols.json so every classification branch shows up
	parties := []string{
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
		"0x3333333333333333333333333333333333333333",
		"0xaaaa000000000000000000000000000000000001", // registry: Aave
		"0xaaaa000000000000000000000000000000000002", // registry: Aave
		"0xbbbb000000000000000000000000000000000001", // registry: Uniswap
	}

	logs := make([]logRecord, 0, n.logsPerBlock*int(to-from+1))
	for block := from; block <= to; block++ {
		rng := rand.New(rand.NewSource(n.seed + int64(block)))
		for i := 0; i < n.logsPerBlock; i++ {
			fromAddr := parties[rng.Intn(len(parties))]
			toAddr := parties[rng.Intn(len(parties))]
			amount := uint64(1+rng.Intn(5000)) * 1e15 // 0.001..5 tokens at 18 decimals

			logs = append(logs, logRecord{
				Address: n.token,
				Topics: []string{
					transferTopic,
					addressTopic(fromAddr),
					addressTopic(toAddr),
				},
				Data:        fmt.Sprintf("0x%064x", amount),
				BlockNumber: hexUint(block),
				TxHash:      fmt.Sprintf("0x%064x", uint64(block)<<16|uint64(i)),
				LogIndex:    hexUint(uint64(i)),
			})
		}
	}
	return logs, nil
}

func addressTopic(addr string) string {
	return "0x000000000000000000000000" + strings.TrimPrefix(addr, "0x")
}

func hexUint(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}

func parseHexUint(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
}
