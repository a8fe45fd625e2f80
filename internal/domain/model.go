package domain

import "math/big"

// Aggregation period label, fixed to the two lookback windows we render
type Period string

const (
	Period24h Period = "24h"
	Period7d  Period = "7d"
)

func (p Period) Valid() bool {
	return p == Period24h || p == Period7d
}

// Collective endpoint for addresses not mapped to any protocol
const WalletsLabel = "Wallets"

// One ERC-20 Transfer log, decoded. Addresses are lowercase 0x-hex;
// From/To come from the low 20 bytes of the indexed topics.
type TransferEvent struct {
	Contract    string   `json:"contract"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	RawAmount   *big.Int `json:"raw_amount"`
	BlockNumber uint64   `json:"block_number"`
	TxHash      string   `json:"tx_hash"`
	LogIndex    uint32   `json:"log_index"`
}

// Directed aggregated edge; source/target are either WalletsLabel or a
// protocol name. Volume is always > 0 once materialized.
type FlowEdge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Volume float64 `json:"volume"`
}

// Output artifact for one period. Flows keep first-encountered order.
type FlowReport struct {
	Period      Period      `json:"period"`
	LastUpdated string      `json:"lastUpdated"` // RFC3339 UTC
	TotalVolume float64     `json:"totalVolume"`
	Flows       []*FlowEdge `json:"flows"`
}
