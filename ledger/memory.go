package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flashswap/dex"
	"github.com/michaelpento.lv/flashswap/types"
	"github.com/michaelpento.lv/flashswap/utils/math"
)

// Factory values used to derive pool IDs
var (
	DefaultFactory      = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	DefaultInitCodeHash = common.FromHex("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f")
)

const DefaultPairCacheSize = 1024

// Options configures a Memory ledger
type Options struct {
	Factory       common.Address
	InitCodeHash  []byte
	PairCacheSize int
}

type pool struct {
	token0   common.Address
	token1   common.Address
	reserve0 *uint256.Int
	reserve1 *uint256.Int
	sem      chan struct{}
}

// Memory is the in-process PoolLedger. Pool IDs are the addresses a v2
// factory would deploy the pair at.
type Memory struct {
	mu        sync.RWMutex
	factory   common.Address
	initCode  []byte
	pools     map[types.PoolID]*pool
	tokens    map[string]common.Address
	pairCache *lru.Cache
	logger    *zap.Logger
}

var _ dex.PoolLedger = (*Memory)(nil)

// NewMemory creates an empty ledger
func NewMemory(logger *zap.Logger, opts Options) (*Memory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Factory == (common.Address{}) {
		opts.Factory = DefaultFactory
	}
	if len(opts.InitCodeHash) == 0 {
		opts.InitCodeHash = DefaultInitCodeHash
	}
	if opts.PairCacheSize <= 0 {
		opts.PairCacheSize = DefaultPairCacheSize
	}

	cache, err := lru.New(opts.PairCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create pair cache: %w", err)
	}

	return &Memory{
		factory:   opts.Factory,
		initCode:  opts.InitCodeHash,
		pools:     make(map[types.PoolID]*pool),
		tokens:    make(map[string]common.Address),
		pairCache: cache,
		logger:    logger,
	}, nil
}

// PairAddress derives the pool ID for a token pair without checking that the
// pool exists.
func (m *Memory) PairAddress(tokenA, tokenB common.Address) (types.PoolID, error) {
	token0, token1, err := types.SortTokens(tokenA, tokenB)
	if err != nil {
		return types.PoolID{}, err
	}

	var key [2 * common.AddressLength]byte
	copy(key[:common.AddressLength], token0.Bytes())
	copy(key[common.AddressLength:], token1.Bytes())
	if cached, ok := m.pairCache.Get(key); ok {
		return cached.(types.PoolID), nil
	}

	id := m.pairFor(token0, token1)
	m.pairCache.Add(key, id)
	return id, nil
}

// pairFor calculates the CREATE2 address for two sorted tokens
func (m *Memory) pairFor(token0, token1 common.Address) types.PoolID {
	salt := crypto.Keccak256(token0.Bytes(), token1.Bytes())
	return common.BytesToAddress(crypto.Keccak256([]byte{
		0xff,
	}, m.factory.Bytes(), salt, m.initCode))
}

// PoolFor returns the existing pool for the pair
func (m *Memory) PoolFor(tokenA, tokenB common.Address) (types.PoolID, error) {
	id, err := m.PairAddress(tokenA, tokenB)
	if err != nil {
		return types.PoolID{}, err
	}

	m.mu.RLock()
	_, ok := m.pools[id]
	m.mu.RUnlock()
	if !ok {
		return types.PoolID{}, types.ErrPoolNotFound.Wrapf("%s/%s", m.Symbol(tokenA), m.Symbol(tokenB))
	}
	return id, nil
}

// CreatePool registers an empty pool for the pair
func (m *Memory) CreatePool(tokenA, tokenB common.Address) (types.PoolID, error) {
	token0, token1, err := types.SortTokens(tokenA, tokenB)
	if err != nil {
		return types.PoolID{}, err
	}
	id, err := m.PairAddress(token0, token1)
	if err != nil {
		return types.PoolID{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[id]; ok {
		return types.PoolID{}, types.ErrPoolExists.Wrapf("%s", id.Hex())
	}
	m.pools[id] = &pool{
		token0:   token0,
		token1:   token1,
		reserve0: math.Zero(),
		reserve1: math.Zero(),
		sem:      make(chan struct{}, 1),
	}

	m.logger.Debug("Pool created",
		zap.String("pool", id.Hex()),
		zap.String("token0", token0.Hex()),
		zap.String("token1", token1.Hex()))
	return id, nil
}

// AddLiquidity credits both reserves of a pool. Both amounts must be
// positive so that reserves never sit at zero once funded.
func (m *Memory) AddLiquidity(id types.PoolID, amount0, amount1 *uint256.Int) error {
	if math.IsZero(amount0) || math.IsZero(amount1) {
		return types.ErrInsufficientInputAmount.Wrap("liquidity must be positive on both sides")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[id]
	if !ok {
		return types.ErrPoolNotFound.Wrapf("%s", id.Hex())
	}
	next0, err := math.Add(p.reserve0, amount0)
	if err != nil {
		return err
	}
	next1, err := math.Add(p.reserve1, amount1)
	if err != nil {
		return err
	}
	p.reserve0, p.reserve1 = next0, next1
	return nil
}

// Provide creates the pool when missing and deposits amounts given in the
// caller's token order.
func (m *Memory) Provide(tokenA, tokenB common.Address, amountA, amountB *uint256.Int) (types.PoolID, error) {
	id, err := m.PoolFor(tokenA, tokenB)
	if err != nil {
		if !errors.Is(err, types.ErrPoolNotFound) {
			return types.PoolID{}, err
		}
		if id, err = m.CreatePool(tokenA, tokenB); err != nil {
			return types.PoolID{}, err
		}
	}

	token0, _, err := types.SortTokens(tokenA, tokenB)
	if err != nil {
		return types.PoolID{}, err
	}
	if token0 == tokenA {
		err = m.AddLiquidity(id, amountA, amountB)
	} else {
		err = m.AddLiquidity(id, amountB, amountA)
	}
	return id, err
}

// Pool returns a copy of the pool. The read does not take the pool's lock:
// outside an operation holding it, an in-flight attack's intermediate
// reserves may be visible. Use Pools for a consistent view.
func (m *Memory) Pool(id types.PoolID) (types.Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pools[id]
	if !ok {
		return types.Pool{}, types.ErrPoolNotFound.Wrapf("%s", id.Hex())
	}
	return p.snapshot(id), nil
}

// GetReserves returns copies of the pool reserves in token order. Callers
// must hold the pool's Lock for the value to be meaningful.
func (m *Memory) GetReserves(id types.PoolID) (*uint256.Int, *uint256.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pools[id]
	if !ok {
		return nil, nil, types.ErrPoolNotFound.Wrapf("%s", id.Hex())
	}
	return p.reserve0.Clone(), p.reserve1.Clone(), nil
}

// ApplySwap moves the pool reserves. The constant-product check belongs to
// the caller, which knows the pre-operation reserves.
func (m *Memory) ApplySwap(id types.PoolID, amount0In, amount1In, amount0Out, amount1Out *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[id]
	if !ok {
		return types.ErrPoolNotFound.Wrapf("%s", id.Hex())
	}

	next0, next1, err := dex.ApplyDeltas(p.reserve0, p.reserve1, amount0In, amount1In, amount0Out, amount1Out)
	if err != nil {
		return fmt.Errorf("pool %s: %w", id.Hex(), err)
	}
	p.reserve0, p.reserve1 = next0, next1
	return nil
}

// Lock blocks until the pool is held or ctx is done
func (m *Memory) Lock(ctx context.Context, id types.PoolID) error {
	m.mu.RLock()
	p, ok := m.pools[id]
	m.mu.RUnlock()
	if !ok {
		return types.ErrPoolNotFound.Wrapf("%s", id.Hex())
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a pool held with Lock. Releasing an unheld pool is a no-op.
func (m *Memory) Release(id types.PoolID) {
	m.mu.RLock()
	p, ok := m.pools[id]
	m.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case <-p.sem:
	default:
		m.logger.Warn("Release of unlocked pool", zap.String("pool", id.Hex()))
	}
}

// Pools returns a consistent snapshot of every pool. It waits for in-flight
// operations so no partially applied swap sequence is visible.
func (m *Memory) Pools(ctx context.Context) ([]types.Pool, error) {
	ids := m.poolIDs()
	release, err := dex.LockAll(ctx, m, ids)
	if err != nil {
		return nil, err
	}
	defer release()

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Pool, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.pools[id].snapshot(id))
	}
	return out, nil
}

// Digest hashes every pool's identity and reserves over a Pools snapshot.
// Two equal digests mean no reserve changed in between.
func (m *Memory) Digest(ctx context.Context) (uint64, error) {
	pools, err := m.Pools(ctx)
	if err != nil {
		return 0, err
	}

	h := xxhash.New()
	for _, p := range pools {
		r0 := p.Reserve0.Bytes32()
		r1 := p.Reserve1.Bytes32()
		_, _ = h.Write(p.ID.Bytes())
		_, _ = h.Write(r0[:])
		_, _ = h.Write(r1[:])
	}
	return h.Sum64(), nil
}

func (m *Memory) poolIDs() []types.PoolID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]types.PoolID, 0, len(m.pools))
	for id := range m.pools {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i].Bytes(), ids[j].Bytes()) < 0
	})
	return ids
}

// RegisterToken binds a symbol to a token address
func (m *Memory) RegisterToken(symbol string, token common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[strings.ToUpper(symbol)] = token
}

// ResolveToken accepts a registered symbol or a hex address
func (m *Memory) ResolveToken(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if common.IsHexAddress(s) {
		return common.HexToAddress(s), nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if token, ok := m.tokens[strings.ToUpper(s)]; ok {
		return token, nil
	}
	return common.Address{}, types.ErrInvalidPath.Wrapf("unknown token %q", s)
}

// ResolvePath resolves every element of a symbol/address path
func (m *Memory) ResolvePath(symbols []string) ([]common.Address, error) {
	path := make([]common.Address, len(symbols))
	for i, s := range symbols {
		token, err := m.ResolveToken(s)
		if err != nil {
			return nil, err
		}
		path[i] = token
	}
	return path, nil
}

// Symbol returns the registered symbol for token, or its hex form
func (m *Memory) Symbol(token common.Address) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.symbolOf(token)
}

// symbolOf expects m.mu to be held.
func (m *Memory) symbolOf(token common.Address) string {
	for symbol, addr := range m.tokens {
		if addr == token {
			return symbol
		}
	}
	return token.Hex()
}

func (p *pool) snapshot(id types.PoolID) types.Pool {
	return types.Pool{
		ID:       id,
		Token0:   p.token0,
		Token1:   p.token1,
		Reserve0: p.reserve0.Clone(),
		Reserve1: p.reserve1.Clone(),
	}
}

// TokenAddress derives a stable placeholder address for a symbol that was
// seeded without one.
func TokenAddress(symbol string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(strings.ToUpper(symbol)))[12:])
}
