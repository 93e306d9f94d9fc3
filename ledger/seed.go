package ledger

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/michaelpento.lv/flashswap/utils/math"
)

// Seed describes the tokens and funded pools a ledger starts with
type Seed struct {
	Tokens []TokenSeed `yaml:"tokens"`
	Pools  []PoolSeed  `yaml:"pools"`
}

// TokenSeed binds a symbol to an address. An empty address is derived from
// the symbol.
type TokenSeed struct {
	Symbol  string `yaml:"symbol"`
	Address string `yaml:"address,omitempty"`
}

// PoolSeed funds one pool. Reserves are base-10 strings in the smallest unit.
type PoolSeed struct {
	TokenA   string `yaml:"token_a"`
	TokenB   string `yaml:"token_b"`
	ReserveA string `yaml:"reserve_a"`
	ReserveB string `yaml:"reserve_b"`
}

// LoadSeed reads a YAML seed file
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes a YAML seed document
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	return &seed, nil
}

// DefaultSeed is the three-pool WETH/USDC/USDT market used throughout the
// test-suite: two 1:100 WETH pools and a 1:1 stable pool.
func DefaultSeed() *Seed {
	oneEther := math.Units(1, 18).Dec()
	hundredEther := math.Units(100, 18).Dec()
	return &Seed{
		Tokens: []TokenSeed{
			{Symbol: "WETH"},
			{Symbol: "USDC"},
			{Symbol: "USDT"},
		},
		Pools: []PoolSeed{
			{TokenA: "WETH", TokenB: "USDC", ReserveA: oneEther, ReserveB: hundredEther},
			{TokenA: "WETH", TokenB: "USDT", ReserveA: oneEther, ReserveB: hundredEther},
			{TokenA: "USDC", TokenB: "USDT", ReserveA: oneEther, ReserveB: oneEther},
		},
	}
}

// Apply registers the seed's tokens and funds its pools
func (s *Seed) Apply(m *Memory) error {
	for _, t := range s.Tokens {
		if t.Symbol == "" {
			return fmt.Errorf("seed token without symbol")
		}
		token := TokenAddress(t.Symbol)
		if t.Address != "" {
			if !common.IsHexAddress(t.Address) {
				return fmt.Errorf("seed token %s: invalid address %q", t.Symbol, t.Address)
			}
			token = common.HexToAddress(t.Address)
		}
		m.RegisterToken(t.Symbol, token)
	}

	for i, p := range s.Pools {
		tokenA, err := m.ResolveToken(p.TokenA)
		if err != nil {
			return fmt.Errorf("seed pool %d: %w", i, err)
		}
		tokenB, err := m.ResolveToken(p.TokenB)
		if err != nil {
			return fmt.Errorf("seed pool %d: %w", i, err)
		}
		reserveA, err := math.ParseAmount(p.ReserveA)
		if err != nil {
			return fmt.Errorf("seed pool %d: %w", i, err)
		}
		reserveB, err := math.ParseAmount(p.ReserveB)
		if err != nil {
			return fmt.Errorf("seed pool %d: %w", i, err)
		}

		id, err := m.Provide(tokenA, tokenB, reserveA, reserveB)
		if err != nil {
			return fmt.Errorf("seed pool %d (%s/%s): %w", i, p.TokenA, p.TokenB, err)
		}
		m.logger.Info("Seeded pool",
			zap.String("pool", id.Hex()),
			zap.String("tokenA", p.TokenA),
			zap.String("tokenB", p.TokenB),
			zap.String("reserveA", reserveA.Dec()),
			zap.String("reserveB", reserveB.Dec()))
	}
	return nil
}

// NewSeeded builds a ledger from a seed file, or from DefaultSeed when path
// is empty.
func NewSeeded(logger *zap.Logger, opts Options, path string) (*Memory, error) {
	seed := DefaultSeed()
	if path != "" {
		var err error
		if seed, err = LoadSeed(path); err != nil {
			return nil, err
		}
	}

	m, err := NewMemory(logger, opts)
	if err != nil {
		return nil, err
	}
	if err := seed.Apply(m); err != nil {
		return nil, err
	}
	return m, nil
}
