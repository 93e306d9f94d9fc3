package dex

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/michaelpento.lv/flashswap/types"
)

// LockAll acquires every distinct pool in canonical byte order, so two
// operations over overlapping pools cannot deadlock. The returned release
// function frees them in reverse order and is safe to call once.
func LockAll(ctx context.Context, ledger PoolLedger, ids []types.PoolID) (func(), error) {
	ordered := Distinct(ids)
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i].Bytes(), ordered[j].Bytes()) < 0
	})

	held := make([]types.PoolID, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			ledger.Release(held[i])
		}
		held = held[:0]
	}

	for _, id := range ordered {
		if err := ledger.Lock(ctx, id); err != nil {
			release()
			return nil, fmt.Errorf("lock pool %s: %w", id.Hex(), err)
		}
		held = append(held, id)
	}
	return release, nil
}

// Distinct returns ids without duplicates, keeping first occurrences.
func Distinct(ids []types.PoolID) []types.PoolID {
	seen := make(map[types.PoolID]struct{}, len(ids))
	out := make([]types.PoolID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
