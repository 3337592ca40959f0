// Package money holds exact-cent arithmetic and calendar stepping. Amounts are
// int64 minor units everywhere; decimal conversion only happens at the
// parse/format boundary.
package money

import "github.com/jask/ledgerflow/internal/domain"

// SplitExact divides total into parts values that sum back to total. The
// remainder is front-loaded: the first total%parts entries get one extra unit.
func SplitExact(total int64, parts int) ([]int64, error) {
	if parts < 1 {
		return nil, domain.InvalidArgument("parts", "must be >= 1, got %d", parts)
	}
	if total <= 0 {
		return nil, domain.InvalidArgument("total", "must be positive, got %d", total)
	}
	n := int64(parts)
	base := total / n
	remainder := total - base*n
	out := make([]int64, parts)
	for i := range out {
		out[i] = base
		if int64(i) < remainder {
			out[i]++
		}
	}
	return out, nil
}

// Sum adds amounts.
func Sum(amounts []int64) int64 {
	var s int64
	for _, a := range amounts {
		s += a
	}
	return s
}

// Abs of a minor-unit amount.
func Abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
