package vrp

import (
	"fmt"
	"math/big"
)

// Z is an extended integer: an arbitrary-precision value or one of the two
// infinities. Range bounds are Zs so that lattice arithmetic never has to
// worry about overflowing an intermediate; results are clamped to the value
// type only when a range is rebuilt.
type Z struct {
	infinity int8
	integer  *big.Int
}

var (
	NInf = Z{infinity: -1}
	PInf = Z{infinity: 1}
)

func NewZ(n int64) Z { return Z{integer: big.NewInt(n)} }

func NewBigZ(n *big.Int) Z { return Z{integer: new(big.Int).Set(n)} }

func (z Z) Infinite() bool { return z.infinity != 0 }

// Int returns the finite value of z. It panics on infinities.
func (z Z) Int() *big.Int {
	if z.Infinite() {
		panic(fmt.Sprintf("Int called on %s", z))
	}
	return z.integer
}

func (z Z) Sign() int {
	if z.Infinite() {
		return int(z.infinity)
	}
	return z.integer.Sign()
}

func (z Z) Cmp(other Z) int {
	if z.infinity != 0 && z.infinity == other.infinity {
		return 0
	}
	switch {
	case z == PInf || other == NInf:
		return 1
	case z == NInf || other == PInf:
		return -1
	}
	return z.integer.Cmp(other.integer)
}

func (z Z) Add(other Z) Z {
	if other.Sign() == -1 {
		return z.Sub(other.Neg())
	}
	switch {
	case z == NInf && other == PInf:
		panic(fmt.Sprintf("%s + %s is not defined", z, other))
	case z == NInf:
		return NInf
	case z == PInf, other == PInf:
		return PInf
	}
	n := new(big.Int).Add(z.integer, other.integer)
	return Z{integer: n}
}

func (z Z) Sub(other Z) Z {
	if other.Sign() == -1 {
		return z.Add(other.Neg())
	}
	switch {
	case !z.Infinite() && !other.Infinite():
		n := new(big.Int).Sub(z.integer, other.integer)
		return Z{integer: n}
	case z == PInf && other == PInf:
		panic(fmt.Sprintf("%s - %s is not defined", z, other))
	case other == PInf:
		return NInf
	case z.Infinite():
		return Z{infinity: z.infinity}
	}
	panic(fmt.Sprintf("%s - %s is not defined", z, other))
}

func (z Z) Mul(other Z) Z {
	if (!z.Infinite() && z.integer.Sign() == 0) ||
		(!other.Infinite() && other.integer.Sign() == 0) {
		return Z{integer: new(big.Int)}
	}
	if z.Infinite() || other.Infinite() {
		return Z{infinity: int8(z.Sign() * other.Sign())}
	}
	n := new(big.Int).Mul(z.integer, other.integer)
	return Z{integer: n}
}

// Quo is truncated division. The divisor must be finite and non-zero.
func (z Z) Quo(other Z) Z {
	if other.Infinite() || other.integer.Sign() == 0 {
		panic(fmt.Sprintf("%s / %s is not defined", z, other))
	}
	if z.Infinite() {
		return Z{infinity: int8(z.Sign() * other.Sign())}
	}
	n := new(big.Int).Quo(z.integer, other.integer)
	return Z{integer: n}
}

func (z Z) Neg() Z {
	switch z.infinity {
	case 1:
		return NInf
	case -1:
		return PInf
	}
	n := new(big.Int).Neg(z.integer)
	return Z{integer: n}
}

func (z Z) Abs() Z {
	if z.Sign() >= 0 {
		return z
	}
	return z.Neg()
}

// Succ returns z+1, Pred returns z-1; infinities are fixed points.
func (z Z) Succ() Z { return z.Add(NewZ(1)) }
func (z Z) Pred() Z { return z.Sub(NewZ(1)) }

func (z Z) String() string {
	switch z.infinity {
	case -1:
		return "-INF"
	case 1:
		return "+INF"
	}
	return z.integer.String()
}

func MinZ(zs ...Z) Z {
	if len(zs) == 0 {
		panic("MinZ called with no arguments")
	}
	ret := zs[0]
	for _, z := range zs[1:] {
		if z.Cmp(ret) == -1 {
			ret = z
		}
	}
	return ret
}

func MaxZ(zs ...Z) Z {
	if len(zs) == 0 {
		panic("MaxZ called with no arguments")
	}
	ret := zs[0]
	for _, z := range zs[1:] {
		if z.Cmp(ret) == 1 {
			ret = z
		}
	}
	return ret
}
