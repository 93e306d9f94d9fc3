package types

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SettlementRecord is the persisted outcome of one flash-loan attack. The
// session itself is never stored.
type SettlementRecord struct {
	ID           int64
	SessionID    uint64
	Path         []common.Address
	BorrowAmount string
	RepaymentDue string
	FinalOutput  string
	Profit       string
	State        string
	Reason       string
	Duration     time.Duration
	CreatedAt    time.Time
}

// PathString joins the path as comma separated hex addresses.
func (r *SettlementRecord) PathString() string {
	parts := make([]string, len(r.Path))
	for i, token := range r.Path {
		parts[i] = token.Hex()
	}
	return strings.Join(parts, ",")
}

// ParsePath is the inverse of PathString.
func ParsePath(s string) []common.Address {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	path := make([]common.Address, len(parts))
	for i, part := range parts {
		path[i] = common.HexToAddress(part)
	}
	return path
}
