package clickhouse

import (
	"math/big"
	"testing"
	"time"

	"flowmap/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestRow_FromTransferEvent(t *testing.T) {
	t.Parallel()

	raw, _ := new(big.Int).SetString("123456789000000000000000000000000000", 10)
	ev := domain.TransferEvent{
		Contract:    "0xdac17f958d2ee523a2206206994597c13d831ec7",
		From:        "0x1111111111111111111111111111111111111111",
		To:          "0xaaaa000000000000000000000000000000000001",
		RawAmount:   raw,
		BlockNumber: 19_000_000,
		TxHash:      "0xabc123",
		LogIndex:    4,
	}
	fetchedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	row := Row(ev, domain.Period24h, "", "Aave", fetchedAt)

	assert.Equal(t, "24h", row.Period)
	assert.Equal(t, "0xabc123:4", row.EventID)
	assert.Equal(t, ev.Contract, row.TokenAddress)
	assert.Equal(t, "", row.FromProtocol)
	assert.Equal(t, "Aave", row.ToProtocol)
	// full precision survives the trip to storage
	assert.Equal(t, "123456789000000000000000000000000000", row.RawAmount)
	assert.Equal(t, uint64(19_000_000), row.BlockNumber)
	assert.Equal(t, fetchedAt, row.FetchedAt)
}
