// internal/math/checked.go
package math

import (
	"math/big"
	"math/bits"
	"sync"
)

// All amounts are unsigned integer base units. Every operation here is
// checked: the boolean result is false on overflow or division by zero,
// never a saturated or wrapped value.

// Int128 pool for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

// AddU64 returns a + b, ok=false on overflow.
func AddU64(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// SubU64 returns a - b, ok=false on underflow.
func SubU64(a, b uint64) (uint64, bool) {
	diff, borrow := bits.Sub64(a, b, 0)
	return diff, borrow == 0
}

// MulU64 returns a * b, ok=false on overflow.
func MulU64(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

// DivU64 returns a / b (truncating), ok=false when b == 0.
func DivU64(a, b uint64) (uint64, bool) {
	if b == 0 {
		return 0, false
	}
	return a / b, true
}

// MulDiv128 returns a * b / c with a 128-bit intermediate product,
// truncating toward zero. ok=false when c == 0 or the quotient does not
// fit in 64 bits.
func MulDiv128(a, b, c uint64) (uint64, bool) {
	if c == 0 {
		return 0, false
	}

	product := getInt128()
	product.SetUint64(a)

	factor := getInt128()
	factor.SetUint64(b)
	product.Mul(product, factor)

	factor.SetUint64(c)
	product.Div(product, factor)

	ok := product.IsUint64()
	var result uint64
	if ok {
		result = product.Uint64()
	}

	putInt128(product)
	putInt128(factor)

	return result, ok
}
