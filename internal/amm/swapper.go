package amm

import "errors"

var (
	// ErrSlippage is returned when a swap's output falls below the
	// caller-chosen minimum.
	ErrSlippage = errors.New("swap output below minimum")

	// ErrNoPool is returned when no pool exists for the asset pair.
	ErrNoPool = errors.New("no pool for asset pair")
)

// Swapper exchanges amountIn of sourceAsset for destAsset, enforcing
// minimumOut. Liquidation uses this to turn seized collateral back into
// the loan's asset: Quote prices the exchange without settling so the
// caller can run its remaining checks, then Swap settles at the quoted
// output.
//
// Implementations used inside the deterministic core must themselves be
// deterministic: the same quote and swap sequence must yield the same
// outputs on replay. Market satisfies this because its reserves are part
// of the core's snapshot state.
type Swapper interface {
	Quote(sourceAsset, destAsset string, amountIn, minimumOut uint64) (uint64, error)
	Swap(sourceAsset, destAsset string, amountIn, minimumOut uint64) (uint64, error)
}
