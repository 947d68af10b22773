// Package ir defines the intermediate representation contract consumed by the
// range propagation engine.
//
// The representation is deliberately small: values in single-assignment form
// with an operator tag and operand list, basic blocks with explicit
// predecessor/successor adjacency, and a control value per block that decides
// which successor edges are taken. Hosts with a richer IR are expected to
// project into this shape; the engine only ever reads operands and adjacency,
// and writes back through the mutation entry points in mutate.go.
package ir

import (
	"fmt"
	"math/big"
)

// NumType describes the numeric type of a value: a signed or unsigned integer
// of a given width, or a floating-point type. Booleans are 1-bit unsigned
// integers.
type NumType struct {
	Bits   int
	Signed bool
	Float  bool
}

var (
	Bool = NumType{Bits: 1}
	I8   = NumType{Bits: 8, Signed: true}
	I16  = NumType{Bits: 16, Signed: true}
	I32  = NumType{Bits: 32, Signed: true}
	I64  = NumType{Bits: 64, Signed: true}
	U8   = NumType{Bits: 8}
	U16  = NumType{Bits: 16}
	U32  = NumType{Bits: 32}
	U64  = NumType{Bits: 64}
	F32  = NumType{Bits: 32, Float: true}
	F64  = NumType{Bits: 64, Float: true}
)

// MinValue returns the smallest value representable by t. It panics for
// floating-point types, whose extremes the engine never materializes.
func (t NumType) MinValue() *big.Int {
	if t.Float {
		panic("ir: MinValue called on floating-point type")
	}
	if !t.Signed {
		return new(big.Int)
	}
	n := big.NewInt(1)
	n.Lsh(n, uint(t.Bits-1))
	return n.Neg(n)
}

// MaxValue returns the largest value representable by t.
func (t NumType) MaxValue() *big.Int {
	if t.Float {
		panic("ir: MaxValue called on floating-point type")
	}
	bits := uint(t.Bits)
	if t.Signed {
		bits--
	}
	n := big.NewInt(1)
	n.Lsh(n, bits)
	return n.Sub(n, big.NewInt(1))
}

func (t NumType) IsBool() bool { return t.Bits == 1 && !t.Signed && !t.Float }

func (t NumType) String() string {
	switch {
	case t.IsBool():
		return "bool"
	case t.Float:
		return fmt.Sprintf("f%d", t.Bits)
	case t.Signed:
		return fmt.Sprintf("i%d", t.Bits)
	default:
		return fmt.Sprintf("u%d", t.Bits)
	}
}

// Op is the operator tag of a value.
type Op uint8

const (
	OpInvalid Op = iota

	OpConst // constant; payload in AuxInt
	OpParam // function parameter, no known range
	OpCopy  // Args[0]
	OpPhi   // one argument per predecessor edge, in Preds order

	// Sigma is a path-sensitive copy of Args[0], placed in a successor
	// block of a conditional. Its range is the argument's range narrowed
	// by the branch condition. Hosts that do not build SSI simply never
	// emit it.
	OpSigma

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpLsh
	OpRsh
	OpAnd
	OpOr
	OpXor
	OpNeg
	OpAbs
	OpMin
	OpMax
	OpNot  // boolean negation
	OpConv // Args[0] converted to Type

	OpSelect // Args[0] ? Args[1] : Args[2]

	// Comparisons produce Bool.
	OpEq
	OpNeq
	OpLess
	OpLeq
	OpGreater
	OpGeq
)

var opNames = [...]string{
	OpInvalid: "Invalid",
	OpConst:   "Const",
	OpParam:   "Param",
	OpCopy:    "Copy",
	OpPhi:     "Phi",
	OpSigma:   "Sigma",
	OpAdd:     "Add",
	OpSub:     "Sub",
	OpMul:     "Mul",
	OpDiv:     "Div",
	OpMod:     "Mod",
	OpLsh:     "Lsh",
	OpRsh:     "Rsh",
	OpAnd:     "And",
	OpOr:      "Or",
	OpXor:     "Xor",
	OpNeg:     "Neg",
	OpAbs:     "Abs",
	OpMin:     "Min",
	OpMax:     "Max",
	OpNot:     "Not",
	OpConv:    "Conv",
	OpSelect:  "Select",
	OpEq:      "Eq",
	OpNeq:     "Neq",
	OpLess:    "Less",
	OpLeq:     "Leq",
	OpGreater: "Greater",
	OpGeq:     "Geq",
}

func (op Op) String() string { return opNames[op] }

// IsComparison reports whether op yields a boolean ordering of its two
// arguments.
func (op Op) IsComparison() bool { return op >= OpEq && op <= OpGeq }

// Value is a single-assignment value: one defining operation, a dense ID
// unique within its function, and the numeric type of the result.
type Value struct {
	ID     int
	Op     Op
	Type   NumType
	Args   []*Value
	AuxInt *big.Int // payload of OpConst
	Block  *Block
}

func (v *Value) Name() string { return fmt.Sprintf("v%d", v.ID) }

func (v *Value) String() string {
	if v.Op == OpConst {
		return fmt.Sprintf("%s = Const <%s> %s", v.Name(), v.Type, v.AuxInt)
	}
	s := fmt.Sprintf("%s = %s <%s>", v.Name(), v.Op, v.Type)
	for _, a := range v.Args {
		s += " " + a.Name()
	}
	return s
}

// BlockKind describes how control leaves a block.
type BlockKind uint8

const (
	BlockPlain  BlockKind = iota // one successor
	BlockIf                      // Control is boolean; Succs[0] then, Succs[1] else
	BlockSwitch                  // Control is integral; Succs[0] default, Succs[1:] per Cases
	BlockExit                    // no successors
)

var blockKindNames = [...]string{
	BlockPlain:  "Plain",
	BlockIf:     "If",
	BlockSwitch: "Switch",
	BlockExit:   "Exit",
}

func (k BlockKind) String() string { return blockKindNames[k] }

// SwitchCase is one label of a switch block. Cases[i] guards Succs[i+1];
// Succs[0] is the default edge.
type SwitchCase struct {
	Value *big.Int
}

// Block is a basic block.
type Block struct {
	ID      int
	Kind    BlockKind
	Control *Value
	Values  []*Value
	Preds   []*Block
	Succs   []*Block
	Cases   []SwitchCase

	// Loop is the header of the innermost loop containing this block, if
	// the host supplies loop structure. The engine only uses it to consult
	// the scalar-evolution oracle.
	Loop *Block
}

func (b *Block) Name() string { return fmt.Sprintf("b%d", b.ID) }

func (b *Block) String() string { return b.Name() }

// Edge identifies a control-flow edge as the Index-th successor edge of
// From. The engine treats edges as opaque handles; only the mutation entry
// points dereference them.
type Edge struct {
	From  *Block
	Index int
}

func (e Edge) To() *Block { return e.From.Succs[e.Index] }

func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s", e.From.Name(), e.To().Name())
}

// predIndex returns the position of e among its target's predecessors,
// counting parallel edges from the same block by successor order.
func (e Edge) predIndex() int {
	to := e.To()
	nth := 0
	for i := 0; i < e.Index; i++ {
		if e.From.Succs[i] == to {
			nth++
		}
	}
	for i, p := range to.Preds {
		if p == e.From {
			if nth == 0 {
				return i
			}
			nth--
		}
	}
	panic(fmt.Sprintf("ir: edge %s not found among predecessors of %s", e, to.Name()))
}

// PredEdge returns the i-th incoming edge of b as an Edge handle on the
// predecessor's successor list.
func (b *Block) PredEdge(i int) Edge {
	from := b.Preds[i]
	nth := 0
	for j := 0; j < i; j++ {
		if b.Preds[j] == from {
			nth++
		}
	}
	for k, s := range from.Succs {
		if s == b {
			if nth == 0 {
				return Edge{From: from, Index: k}
			}
			nth--
		}
	}
	panic(fmt.Sprintf("ir: predecessor %s of %s has no matching successor edge", from.Name(), b.Name()))
}

// Func is one function's worth of IR.
type Func struct {
	Name   string
	Blocks []*Block // Blocks[0] is the entry block

	vid int
	bid int
}

func NewFunc(name string) *Func {
	return &Func{Name: name}
}

// NumValues returns an upper bound on value IDs, usable as a dense table
// size.
func (f *Func) NumValues() int { return f.vid }

// NumBlocks returns an upper bound on block IDs.
func (f *Func) NumBlocks() int { return f.bid }

func (f *Func) Entry() *Block { return f.Blocks[0] }

// NewBlock appends a new block of the given kind.
func (f *Func) NewBlock(kind BlockKind) *Block {
	b := &Block{ID: f.bid, Kind: kind}
	f.bid++
	f.Blocks = append(f.Blocks, b)
	return b
}

// AddEdge wires a successor edge from one block to another, keeping the
// predecessor list in step.
func (f *Func) AddEdge(from, to *Block) Edge {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
	return Edge{From: from, Index: len(from.Succs) - 1}
}

// NewValue appends a value to b.
func (b *Block) NewValue(f *Func, op Op, typ NumType, args ...*Value) *Value {
	v := &Value{ID: f.vid, Op: op, Type: typ, Args: args, Block: b}
	f.vid++
	b.Values = append(b.Values, v)
	return v
}

// NewConst appends an integer constant to b.
func (b *Block) NewConst(f *Func, typ NumType, n int64) *Value {
	v := b.NewValue(f, OpConst, typ)
	v.AuxInt = big.NewInt(n)
	return v
}

// NewBigConst appends an integer constant with an arbitrary-precision
// payload.
func (b *Block) NewBigConst(f *Func, typ NumType, n *big.Int) *Value {
	v := b.NewValue(f, OpConst, typ)
	v.AuxInt = new(big.Int).Set(n)
	return v
}

// SetControl sets the value deciding which successor edge is taken.
func (b *Block) SetControl(v *Value) { b.Control = v }

// Values iterates in block order, entry first. The engine relies on this
// order being stable across calls.
func (f *Func) AllValues(visit func(*Value)) {
	for _, b := range f.Blocks {
		for _, v := range b.Values {
			visit(v)
		}
	}
}
