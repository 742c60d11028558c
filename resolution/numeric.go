// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package resolution

import (
	"math/big"
	"strings"
)

// ParseNumeric parses a decimal outcome string ("42", "-3.5", "1e6") into an
// exact rational. Fraction notation ("2/3") is rejected, outcome strings are
// plain numbers.
func ParseNumeric(s string) (*big.Rat, bool) {
	if strings.ContainsRune(s, '/') {
		return nil, false
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, false
	}
	return r, true
}

// FormatRat renders a rational canonically: integers print without a decimal
// point, values with a finite decimal expansion print that exact expansion
// with trailing zeros trimmed, everything else keeps the num/denom form.
func FormatRat(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}

	// a denominator with only factors of 2 and 5 terminates in decimal
	den := new(big.Int).Set(r.Denom())
	digits := 0
	for _, p := range []int64{2, 5} {
		prime := big.NewInt(p)
		mod := new(big.Int)
		for {
			quo, m := new(big.Int).QuoRem(den, prime, mod)
			if m.Sign() != 0 {
				break
			}
			den.Set(quo)
			digits++
		}
	}
	if den.Cmp(big.NewInt(1)) != 0 {
		return r.RatString()
	}

	s := r.FloatString(digits)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
