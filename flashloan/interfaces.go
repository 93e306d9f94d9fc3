package flashloan

import (
	"context"

	"github.com/michaelpento.lv/flashswap/types"
)

// Recorder persists the outcome of every attack
type Recorder interface {
	RecordSettlement(ctx context.Context, rec *types.SettlementRecord) error
}
