// internal/math/loan.go
package math

// Loan arithmetic. Rates are on a 0-100 integer scale; elapsed and
// duration share one time unit (the formulas are unit-agnostic).

// InterestFactor computes elapsed * rate / (duration * 100), truncating.
// Interest accrues linearly and only in whole multiples of the principal:
// the factor stays 0 until elapsed * rate reaches duration * 100.
func InterestFactor(elapsed uint64, rate uint8, duration uint64) (uint64, bool) {
	denom, ok := MulU64(duration, 100)
	if !ok {
		return 0, false
	}
	return MulDiv128(elapsed, uint64(rate), denom)
}

// RepaymentDue computes amount + amount * interestFactor.
func RepaymentDue(amount uint64, rate uint8, elapsed, duration uint64) (uint64, bool) {
	factor, ok := InterestFactor(elapsed, rate, duration)
	if !ok {
		return 0, false
	}
	interest, ok := MulU64(amount, factor)
	if !ok {
		return 0, false
	}
	return AddU64(amount, interest)
}

// HealthFactor computes collateral * 100 / repaymentDue: the percentage of
// what is currently owed that the collateral covers.
func HealthFactor(collateral, repaymentDue uint64) (uint64, bool) {
	return MulDiv128(collateral, 100, repaymentDue)
}

// MinCollateral computes amount * 15 / 10, the 150% collateralization floor.
func MinCollateral(amount uint64) (uint64, bool) {
	x, ok := MulU64(amount, 15)
	if !ok {
		return 0, false
	}
	return x / 10, true
}

// RefundSplit computes the cleanup settlement for a stale order:
// refund = amount * 995 / 1000, fee = amount * 5 / 1000, both truncating.
// The caller reconciles refund + fee against the original amount.
func RefundSplit(amount uint64) (refund, fee uint64, ok bool) {
	r, ok := MulU64(amount, 995)
	if !ok {
		return 0, 0, false
	}
	f, ok := MulU64(amount, 5)
	if !ok {
		return 0, 0, false
	}
	return r / 1000, f / 1000, true
}
