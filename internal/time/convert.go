package timeutils

import (
	"fmt"
	"math/big"
)

// Rounding selects how a mean that falls exactly between two whole
// milliseconds is resolved.
type Rounding string

const (
	// RoundHalfEven resolves ties to the even millisecond (2.5 -> 2, 3.5 -> 4).
	RoundHalfEven Rounding = "half-even"
	// RoundHalfUp resolves ties away from zero (2.5 -> 3).
	RoundHalfUp Rounding = "half-up"
)

const MicrosPerMilli = 1000

var validRoundings = map[string]Rounding{
	"half-even": RoundHalfEven,
	"half-up":   RoundHalfUp,
}

// ParseRounding validates a rounding mode name. The empty string selects
// RoundHalfEven.
func ParseRounding(s string) (Rounding, error) {
	if s == "" {
		return RoundHalfEven, nil
	}
	r, ok := validRoundings[s]
	if !ok {
		return "", fmt.Errorf("unsupported rounding: %s (valid: half-even, half-up)", s)
	}
	return r, nil
}

// MeanMillis returns sum/count converted from microseconds to whole
// milliseconds. The division is exact, so the result depends only on the
// sum and the count and never on the order the values were added in.
func MeanMillis(sum *big.Int, count int64, rounding Rounding) (int64, error) {
	if _, ok := validRoundings[string(rounding)]; !ok {
		return 0, fmt.Errorf("unsupported rounding: %s", rounding)
	}
	if count <= 0 {
		return 0, fmt.Errorf("mean of %d observations", count)
	}
	if sum.Sign() < 0 {
		return 0, fmt.Errorf("negative sum: %s", sum)
	}

	divisor := new(big.Int).Mul(big.NewInt(count), big.NewInt(MicrosPerMilli))
	quo, rem := new(big.Int).QuoRem(sum, divisor, new(big.Int))

	// compare the remainder against half the divisor without leaving integers
	switch new(big.Int).Lsh(rem, 1).Cmp(divisor) {
	case 1:
		quo.Add(quo, big.NewInt(1))
	case 0:
		switch rounding {
		case RoundHalfUp:
			quo.Add(quo, big.NewInt(1))
		case RoundHalfEven:
			if quo.Bit(0) == 1 {
				quo.Add(quo, big.NewInt(1))
			}
		}
	}

	if !quo.IsInt64() {
		return 0, fmt.Errorf("mean %s ms overflows int64", quo)
	}
	return quo.Int64(), nil
}
