package vrp

import (
	"testing"

	"github.com/irtools/rangeprop/ir"
)

func TestArithTables(t *testing.T) {
	tests := []struct {
		name string
		got  VRange
		want VRange
	}{
		{"add", rng(ir.I32, 1, 5).Add(rng(ir.I32, 10, 20)), rng(ir.I32, 11, 25)},
		{"add overflow widens", rng(ir.I8, 100, 120).Add(rng(ir.I8, 10, 10)), VaryingFor(ir.I8)},
		{"add undefined absorbs", UndefinedFor(ir.I32).Add(rng(ir.I32, 1, 2)), UndefinedFor(ir.I32)},
		{"sub", rng(ir.I32, 10, 20).Sub(rng(ir.I32, 1, 5)), rng(ir.I32, 5, 19)},
		{"mul mixed signs", rng(ir.I32, -2, 3).Mul(rng(ir.I32, -4, 5)), rng(ir.I32, -12, 15)},
		{"div positive", rng(ir.I32, 10, 21).Div(rng(ir.I32, 2, 5)), rng(ir.I32, 2, 10)},
		{"div by zero-straddling range", rng(ir.I32, 10, 20).Div(rng(ir.I32, -1, 1)), VaryingFor(ir.I32)},
		{"div by nonzero", rng(ir.I32, 10, 20).Div(NonZero(ir.I32)), rng(ir.I32, -20, 20)},
		{"mod nonnegative dividend", rng(ir.I32, 0, 100).Mod(rng(ir.I32, 7, 7)), rng(ir.I32, 0, 6)},
		{"mod small dividend", rng(ir.I32, 0, 3).Mod(rng(ir.I32, 7, 7)), rng(ir.I32, 0, 3)},
		{"mod negative dividend", rng(ir.I32, -100, -1).Mod(rng(ir.I32, 7, 7)), rng(ir.I32, -6, 0)},
		{"lsh", rng(ir.I32, 1, 3).Lsh(rng(ir.I32, 2, 4)), rng(ir.I32, 4, 48)},
		{"lsh out-of-window shift", rng(ir.I32, 1, 1).Lsh(rng(ir.I32, 0, 40)), VaryingFor(ir.I32)},
		{"rsh floors negatives", rng(ir.I32, -8, -1).Rsh(rng(ir.I32, 1, 1)), rng(ir.I32, -4, -1)},
		{"and caps at smaller max", rng(ir.I32, 0, 100).And(rng(ir.I32, 0, 15)), rng(ir.I32, 0, 15)},
		{"and negative operand widens", rng(ir.I32, -1, 5).And(rng(ir.I32, 0, 3)), VaryingFor(ir.I32)},
		{"or bit ceiling", rng(ir.I32, 4, 9).Or(rng(ir.I32, 1, 3)), rng(ir.I32, 4, 15)},
		{"xor bit ceiling", rng(ir.I32, 0, 9).Xor(rng(ir.I32, 0, 3)), rng(ir.I32, 0, 15)},
		{"neg", rng(ir.I32, -3, 7).Neg(), rng(ir.I32, -7, 3)},
		{"neg of type min widens", rng(ir.I8, -128, 0).Neg(), VaryingFor(ir.I8)},
		{"abs nonnegative unchanged", rng(ir.I32, 3, 9).Abs(), rng(ir.I32, 3, 9)},
		{"abs negative flips", rng(ir.I32, -9, -3).Abs(), rng(ir.I32, 3, 9)},
		{"abs mixed", rng(ir.I32, -9, 3).Abs(), rng(ir.I32, 0, 9)},
		{"min", rng(ir.I32, 0, 10).Min2(rng(ir.I32, 5, 7)), rng(ir.I32, 0, 7)},
		{"max", rng(ir.I32, 0, 10).Max2(rng(ir.I32, 5, 7)), rng(ir.I32, 5, 10)},
		{"not true", Singleton(ir.Bool, NewZ(1)).Not(), Singleton(ir.Bool, NewZ(0))},
		{"not unknown bool", rng(ir.Bool, 0, 1).Not(), rng(ir.Bool, 0, 1)},
		{"cast narrowing fits", rng(ir.I32, 0, 100).Cast(ir.I8), rng(ir.I8, 0, 100)},
		{"cast narrowing truncates", rng(ir.I32, 0, 300).Cast(ir.I8), VaryingFor(ir.I8)},
		{"cast widening", rng(ir.I8, -5, 5).Cast(ir.I32), rng(ir.I32, -5, 5)},
		{"float operand widens", VaryingFor(ir.F64).Add(VaryingFor(ir.F64)), VaryingFor(ir.F64)},
	}
	for _, tt := range tests {
		if !tt.got.Equal(tt.want) {
			t.Errorf("%s: got %s, want %s", tt.name, tt.got, tt.want)
		}
	}
}

// concreteI8 evaluates op on two int8 values with Go's own semantics. ok is
// false for operand pairs the operation is not defined on.
func concreteI8(op ir.Op, x, y int8) (int8, bool) {
	switch op {
	case ir.OpAdd:
		return x + y, true
	case ir.OpSub:
		return x - y, true
	case ir.OpMul:
		return x * y, true
	case ir.OpDiv:
		if y == 0 {
			return 0, false
		}
		return x / y, true
	case ir.OpMod:
		if y == 0 {
			return 0, false
		}
		return x % y, true
	case ir.OpLsh:
		if y < 0 || y > 7 {
			return 0, false
		}
		return x << uint(y), true
	case ir.OpRsh:
		if y < 0 || y > 7 {
			return 0, false
		}
		return x >> uint(y), true
	case ir.OpAnd:
		return x & y, true
	case ir.OpOr:
		return x | y, true
	case ir.OpXor:
		return x ^ y, true
	}
	panic("unhandled op")
}

func applyI8(op ir.Op, a, b VRange) VRange {
	switch op {
	case ir.OpAdd:
		return a.Add(b)
	case ir.OpSub:
		return a.Sub(b)
	case ir.OpMul:
		return a.Mul(b)
	case ir.OpDiv:
		return a.Div(b)
	case ir.OpMod:
		return a.Mod(b)
	case ir.OpLsh:
		return a.Lsh(b)
	case ir.OpRsh:
		return a.Rsh(b)
	case ir.OpAnd:
		return a.And(b)
	case ir.OpOr:
		return a.Or(b)
	case ir.OpXor:
		return a.Xor(b)
	}
	panic("unhandled op")
}

// TestArithSoundnessI8 checks, over a set of i8 intervals small enough to
// enumerate, that every concrete result of an operation lands inside the
// interval computed for its operand ranges.
func TestArithSoundnessI8(t *testing.T) {
	bounds := [][2]int64{
		{-128, -120}, {-5, 5}, {-3, -1}, {-1, -1}, {0, 0},
		{0, 7}, {1, 3}, {7, 7}, {0, 127}, {120, 127},
	}
	ranges := make([]VRange, len(bounds))
	for i, b := range bounds {
		ranges[i] = rng(ir.I8, b[0], b[1])
	}
	ops := []ir.Op{
		ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
		ir.OpLsh, ir.OpRsh, ir.OpAnd, ir.OpOr, ir.OpXor,
	}
	for _, op := range ops {
		for _, ra := range ranges {
			for _, rb := range ranges {
				res := applyI8(op, ra, rb)
				for x := ra.Min.Int().Int64(); x <= ra.Max.Int().Int64(); x++ {
					for y := rb.Min.Int().Int64(); y <= rb.Max.Int().Int64(); y++ {
						c, ok := concreteI8(op, int8(x), int8(y))
						if !ok {
							continue
						}
						if !res.Contains(NewZ(int64(c))) {
							t.Fatalf("%s: %s op %s = %s does not contain %d op %d = %d",
								op, ra, rb, res, x, y, c)
						}
					}
				}
			}
		}
	}
}

func TestUnarySoundnessI8(t *testing.T) {
	for lo := int64(-128); lo <= 127; lo += 17 {
		for hi := lo; hi <= 127; hi += 23 {
			r := rng(ir.I8, lo, hi)
			neg := r.Neg()
			abs := r.Abs()
			for x := lo; x <= hi; x++ {
				if !neg.Contains(NewZ(int64(-int8(x)))) {
					t.Fatalf("Neg(%s) = %s does not contain -%d", r, neg, x)
				}
				a := int8(x)
				if a < 0 {
					a = -a
				}
				if !abs.Contains(NewZ(int64(a))) {
					t.Fatalf("Abs(%s) = %s does not contain |%d|", r, abs, x)
				}
			}
		}
	}
}
