package amm

import (
	"fmt"
	"sort"

	fpmath "LendAuction/internal/math"
)

// PoolState is the serializable reserve pair of one pool. Reserves are
// keyed canonically (lexicographically smaller asset first) so A/B and
// B/A address the same pool.
type PoolState struct {
	AssetA   string `json:"asset_a"`
	AssetB   string `json:"asset_b"`
	ReserveA uint64 `json:"reserve_a"`
	ReserveB uint64 `json:"reserve_b"`
}

// Market is a constant-product swap venue. It is deterministic: output
// depends only on reserves and input, and reserves mutate only through
// Swap, so a replay of the same command stream reproduces the same
// proceeds.
type Market struct {
	pools map[string]*PoolState
}

func NewMarket() *Market {
	return &Market{pools: make(map[string]*PoolState)}
}

// AddPool registers a pool with initial reserves. Replaces any existing
// pool for the pair.
func (m *Market) AddPool(assetA string, reserveA uint64, assetB string, reserveB uint64) {
	a, ra, b, rb := canonical(assetA, reserveA, assetB, reserveB)
	m.pools[poolKey(a, b)] = &PoolState{AssetA: a, AssetB: b, ReserveA: ra, ReserveB: rb}
}

// Quote computes the constant-product output for a swap without moving
// reserves: out = reserveOut * in / (reserveIn + in), truncating. Returns
// ErrSlippage when the output is below minimumOut. Callers that must run
// further checks between pricing and settlement quote first and Swap only
// once every check has passed.
func (m *Market) Quote(sourceAsset, destAsset string, amountIn, minimumOut uint64) (uint64, error) {
	_, _, out, err := m.quote(sourceAsset, destAsset, amountIn, minimumOut)
	return out, err
}

// Swap exchanges amountIn of sourceAsset for destAsset at the quoted
// output. The pool is untouched on any error.
func (m *Market) Swap(sourceAsset, destAsset string, amountIn, minimumOut uint64) (uint64, error) {
	pool, newReserveIn, out, err := m.quote(sourceAsset, destAsset, amountIn, minimumOut)
	if err != nil {
		return 0, err
	}

	if sourceAsset == pool.AssetA {
		pool.ReserveA = newReserveIn
		pool.ReserveB -= out
	} else {
		pool.ReserveB = newReserveIn
		pool.ReserveA -= out
	}

	return out, nil
}

func (m *Market) quote(sourceAsset, destAsset string, amountIn, minimumOut uint64) (*PoolState, uint64, uint64, error) {
	a, _, b, _ := canonical(sourceAsset, 0, destAsset, 0)
	pool, ok := m.pools[poolKey(a, b)]
	if !ok {
		return nil, 0, 0, fmt.Errorf("%w: %s/%s", ErrNoPool, sourceAsset, destAsset)
	}

	reserveIn, reserveOut := pool.ReserveA, pool.ReserveB
	if sourceAsset == pool.AssetB {
		reserveIn, reserveOut = pool.ReserveB, pool.ReserveA
	}

	newReserveIn, ok := fpmath.AddU64(reserveIn, amountIn)
	if !ok {
		return nil, 0, 0, fmt.Errorf("swap input overflows pool %s/%s", pool.AssetA, pool.AssetB)
	}
	out, ok := fpmath.MulDiv128(reserveOut, amountIn, newReserveIn)
	if !ok {
		return nil, 0, 0, fmt.Errorf("swap output overflows pool %s/%s", pool.AssetA, pool.AssetB)
	}
	if out < minimumOut {
		return nil, 0, 0, fmt.Errorf("%w: got %d, need %d", ErrSlippage, out, minimumOut)
	}

	return pool, newReserveIn, out, nil
}

// Snapshot returns the pool states sorted by pair key, for inclusion in
// core snapshots.
func (m *Market) Snapshot() []PoolState {
	states := make([]PoolState, 0, len(m.pools))
	for _, p := range m.pools {
		states = append(states, *p)
	}
	sort.Slice(states, func(i, j int) bool {
		return poolKey(states[i].AssetA, states[i].AssetB) < poolKey(states[j].AssetA, states[j].AssetB)
	})
	return states
}

// Restore replaces all pools from a snapshot.
func (m *Market) Restore(states []PoolState) {
	m.pools = make(map[string]*PoolState, len(states))
	for _, s := range states {
		pool := s
		m.pools[poolKey(s.AssetA, s.AssetB)] = &pool
	}
}

func canonical(assetA string, reserveA uint64, assetB string, reserveB uint64) (string, uint64, string, uint64) {
	if assetA > assetB {
		return assetB, reserveB, assetA, reserveA
	}
	return assetA, reserveA, assetB, reserveB
}

func poolKey(a, b string) string {
	return a + "/" + b
}
