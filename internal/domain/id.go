package domain

import (
	"fmt"
	"strings"
)

// EventID = "<tx_hash>:<log_index>", used as the ClickHouse row key
func MakeEventID(txHash string, logIndex uint32) string {
	return fmt.Sprintf("%s:%d", strings.ToLower(txHash), logIndex)
}
