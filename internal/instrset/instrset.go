// Package instrset is the lookup table the parser and type checker both
// drive off of: for each plain instruction mnemonic it records what shape
// of immediates follow the mnemonic and, for instructions with a fixed
// stack signature, what that signature is. Instructions whose typing
// depends on context (locals, globals, declared types) are flagged by
// category instead and typed by the checker.
//
// Coverage here is deliberately a representative slice of the opcode
// space rather than the full instruction set: enough of each immediate
// shape and typing category to exercise every path in the checker and
// binder, not a transcription of the Wasm opcode table.
package instrset

import "github.com/watlang/watls/internal/typesystem"

// Shape identifies how a plain instruction's immediates are laid out in
// the syntax tree, so the parser knows what to consume after the
// mnemonic.
type Shape uint8

const (
	ShapeNone       Shape = iota // no immediates: i32.add, drop, nop, ...
	ShapeLocalIdx                // local.get/set/tee
	ShapeGlobalIdx                // global.get/set
	ShapeFuncIdx                  // call, return_call, ref.func
	ShapeTypeUse                  // call_indirect, return_call_indirect
	ShapeFuncRefIdx               // call_ref, return_call_ref: one type INDEX
	ShapeLabelIdx                 // br, br_if
	ShapeBrTable                  // br_table: INDEX* INDEX
	ShapeMemArg                   // i32.load, i32.store8, ...
	ShapeIntConst                 // i32.const, i64.const
	ShapeFloatConst               // f32.const, f64.const
	ShapeHeapType                 // ref.null
	ShapeRefType                  // ref.test, ref.cast
	ShapeStructField              // struct.get/set (+ _s/_u): type INDEX, field INDEX
	ShapeArrayType                // struct.new, array.new, array.get/set, array.fill: one type INDEX
	ShapeArrayCopy                // array.copy: dst type INDEX, src type INDEX
	ShapeMemoryIdx                // memory.size/grow, memory.fill (optional memory INDEX)
	ShapeMemoryCopy                // memory.copy: two optional memory INDEX
	ShapeDataIdx                  // memory.init, data.drop
	ShapeElemIdx                  // table.init, elem.drop
	ShapeTableIdx                  // table.get/set/size/grow/fill
	ShapeTableCopy                  // table.copy
	ShapeSelect                      // select, with an optional (result t)
	ShapeCastLabel                    // br_on_cast, br_on_cast_fail: label + two ref types
	ShapeBrOnNonNull                   // br_on_null, br_on_non_null: label only (reuses ShapeLabelIdx)
)

// Category tells the type checker how to compute an instruction's stack
// effect. Fixed-signature instructions carry their Signature directly;
// everything else is typed by a dedicated code path in package typecheck.
type Category uint8

const (
	CategoryFixed Category = iota
	CategoryLocalGet
	CategoryLocalSet
	CategoryLocalTee
	CategoryGlobalGet
	CategoryGlobalSet
	CategoryCall
	CategoryCallIndirect
	CategoryCallRef
	CategoryReturnCall
	CategoryReturnCallIndirect
	CategoryReturnCallRef
	CategoryReturn
	CategoryBranch
	CategoryBranchIf
	CategoryBranchTable
	CategoryBranchOnNull
	CategoryBranchOnNonNull
	CategoryBranchOnCast
	CategoryBranchOnCastFail
	CategoryUnreachable
	CategoryDrop
	CategorySelect
	CategoryConstI32
	CategoryConstI64
	CategoryConstF32
	CategoryConstF64
	CategoryRefNull
	CategoryRefIsNull
	CategoryRefAsNonNull
	CategoryRefFunc
	CategoryRefEq
	CategoryRefTest
	CategoryRefCast
	CategoryStructNew
	CategoryStructNewDefault
	CategoryStructGet
	CategoryStructSet
	CategoryArrayNew
	CategoryArrayNewDefault
	CategoryArrayNewFixed
	CategoryArrayGet
	CategoryArraySet
	CategoryArrayLen
	CategoryArrayFill
	CategoryArrayCopy
	CategoryMemoryLoad
	CategoryMemoryStore
	CategoryMemorySize
	CategoryMemoryGrow
	CategoryMemoryCopy
	CategoryMemoryFill
	CategoryMemoryInit
	CategoryDataDrop
	CategoryTableGet
	CategoryTableSet
	CategoryTableSize
	CategoryTableGrow
	CategoryTableFill
	CategoryTableCopy
	CategoryTableInit
	CategoryElemDrop
	CategoryThrow
	CategoryThrowRef
)

// Info describes one plain instruction mnemonic.
type Info struct {
	Name      string
	Shape     Shape
	Category  Category
	Signature typesystem.Signature // only meaningful when Category == CategoryFixed
}

var table map[string]Info

func init() {
	table = make(map[string]Info, 256)
	for _, i := range fixedArity {
		table[i.Name] = i
	}
	for _, i := range contextual {
		table[i.Name] = i
	}
}

// Lookup returns the metadata for a plain instruction mnemonic.
func Lookup(name string) (Info, bool) {
	i, ok := table[name]
	return i, ok
}

func v(vt ...typesystem.ValType) []typesystem.ValType { return vt }

var (
	i32 = typesystem.ValType{Kind: typesystem.ValI32}
	i64 = typesystem.ValType{Kind: typesystem.ValI64}
	f32 = typesystem.ValType{Kind: typesystem.ValF32}
	f64 = typesystem.ValType{Kind: typesystem.ValF64}
)

func fixed(name string, params, results []typesystem.ValType) Info {
	return Info{Name: name, Shape: ShapeNone, Category: CategoryFixed,
		Signature: typesystem.Signature{Params: params, Results: results}}
}

// fixedArity lists instructions whose stack effect never depends on
// context: a subset of the plain numeric and comparison opcodes.
var fixedArity = []Info{
	fixed("i32.eqz", v(i32), v(i32)),
	fixed("i32.eq", v(i32, i32), v(i32)),
	fixed("i32.ne", v(i32, i32), v(i32)),
	fixed("i32.lt_s", v(i32, i32), v(i32)),
	fixed("i32.lt_u", v(i32, i32), v(i32)),
	fixed("i32.gt_s", v(i32, i32), v(i32)),
	fixed("i32.gt_u", v(i32, i32), v(i32)),
	fixed("i32.le_s", v(i32, i32), v(i32)),
	fixed("i32.ge_s", v(i32, i32), v(i32)),
	fixed("i32.add", v(i32, i32), v(i32)),
	fixed("i32.sub", v(i32, i32), v(i32)),
	fixed("i32.mul", v(i32, i32), v(i32)),
	fixed("i32.div_s", v(i32, i32), v(i32)),
	fixed("i32.div_u", v(i32, i32), v(i32)),
	fixed("i32.rem_s", v(i32, i32), v(i32)),
	fixed("i32.and", v(i32, i32), v(i32)),
	fixed("i32.or", v(i32, i32), v(i32)),
	fixed("i32.xor", v(i32, i32), v(i32)),
	fixed("i32.shl", v(i32, i32), v(i32)),
	fixed("i32.shr_s", v(i32, i32), v(i32)),
	fixed("i32.shr_u", v(i32, i32), v(i32)),
	fixed("i32.clz", v(i32), v(i32)),
	fixed("i32.ctz", v(i32), v(i32)),
	fixed("i32.popcnt", v(i32), v(i32)),
	fixed("i32.wrap_i64", v(i64), v(i32)),
	fixed("i32.trunc_f32_s", v(f32), v(i32)),
	fixed("i32.trunc_f64_s", v(f64), v(i32)),
	fixed("i32.reinterpret_f32", v(f32), v(i32)),

	fixed("i64.eqz", v(i64), v(i32)),
	fixed("i64.eq", v(i64, i64), v(i32)),
	fixed("i64.ne", v(i64, i64), v(i32)),
	fixed("i64.lt_s", v(i64, i64), v(i32)),
	fixed("i64.add", v(i64, i64), v(i64)),
	fixed("i64.sub", v(i64, i64), v(i64)),
	fixed("i64.mul", v(i64, i64), v(i64)),
	fixed("i64.div_s", v(i64, i64), v(i64)),
	fixed("i64.and", v(i64, i64), v(i64)),
	fixed("i64.or", v(i64, i64), v(i64)),
	fixed("i64.xor", v(i64, i64), v(i64)),
	fixed("i64.shl", v(i64, i64), v(i64)),
	fixed("i64.extend_i32_s", v(i32), v(i64)),
	fixed("i64.extend_i32_u", v(i32), v(i64)),
	fixed("i64.reinterpret_f64", v(f64), v(i64)),

	fixed("f32.eq", v(f32, f32), v(i32)),
	fixed("f32.lt", v(f32, f32), v(i32)),
	fixed("f32.add", v(f32, f32), v(f32)),
	fixed("f32.sub", v(f32, f32), v(f32)),
	fixed("f32.mul", v(f32, f32), v(f32)),
	fixed("f32.div", v(f32, f32), v(f32)),
	fixed("f32.sqrt", v(f32), v(f32)),
	fixed("f32.neg", v(f32), v(f32)),
	fixed("f32.abs", v(f32), v(f32)),
	fixed("f32.convert_i32_s", v(i32), v(f32)),
	fixed("f32.demote_f64", v(f64), v(f32)),
	fixed("f32.reinterpret_i32", v(i32), v(f32)),

	fixed("f64.eq", v(f64, f64), v(i32)),
	fixed("f64.lt", v(f64, f64), v(i32)),
	fixed("f64.add", v(f64, f64), v(f64)),
	fixed("f64.sub", v(f64, f64), v(f64)),
	fixed("f64.mul", v(f64, f64), v(f64)),
	fixed("f64.div", v(f64, f64), v(f64)),
	fixed("f64.sqrt", v(f64), v(f64)),
	fixed("f64.neg", v(f64), v(f64)),
	fixed("f64.promote_f32", v(f32), v(f64)),
	fixed("f64.reinterpret_i64", v(i64), v(f64)),

	{Name: "nop", Shape: ShapeNone, Category: CategoryFixed, Signature: typesystem.Signature{}},
}

var contextual = []Info{
	{Name: "unreachable", Shape: ShapeNone, Category: CategoryUnreachable},
	{Name: "drop", Shape: ShapeNone, Category: CategoryDrop},
	{Name: "return", Shape: ShapeNone, Category: CategoryReturn},
	{Name: "select", Shape: ShapeSelect, Category: CategorySelect},

	{Name: "local.get", Shape: ShapeLocalIdx, Category: CategoryLocalGet},
	{Name: "local.set", Shape: ShapeLocalIdx, Category: CategoryLocalSet},
	{Name: "local.tee", Shape: ShapeLocalIdx, Category: CategoryLocalTee},
	{Name: "global.get", Shape: ShapeGlobalIdx, Category: CategoryGlobalGet},
	{Name: "global.set", Shape: ShapeGlobalIdx, Category: CategoryGlobalSet},

	{Name: "call", Shape: ShapeFuncIdx, Category: CategoryCall},
	{Name: "call_indirect", Shape: ShapeTypeUse, Category: CategoryCallIndirect},
	{Name: "call_ref", Shape: ShapeFuncRefIdx, Category: CategoryCallRef},
	{Name: "return_call", Shape: ShapeFuncIdx, Category: CategoryReturnCall},
	{Name: "return_call_indirect", Shape: ShapeTypeUse, Category: CategoryReturnCallIndirect},
	{Name: "return_call_ref", Shape: ShapeFuncRefIdx, Category: CategoryReturnCallRef},

	{Name: "br", Shape: ShapeLabelIdx, Category: CategoryBranch},
	{Name: "br_if", Shape: ShapeLabelIdx, Category: CategoryBranchIf},
	{Name: "br_table", Shape: ShapeBrTable, Category: CategoryBranchTable},
	{Name: "br_on_null", Shape: ShapeLabelIdx, Category: CategoryBranchOnNull},
	{Name: "br_on_non_null", Shape: ShapeLabelIdx, Category: CategoryBranchOnNonNull},
	{Name: "br_on_cast", Shape: ShapeCastLabel, Category: CategoryBranchOnCast},
	{Name: "br_on_cast_fail", Shape: ShapeCastLabel, Category: CategoryBranchOnCastFail},

	{Name: "throw", Shape: ShapeFuncIdx, Category: CategoryThrow},
	{Name: "throw_ref", Shape: ShapeNone, Category: CategoryThrowRef},

	{Name: "i32.const", Shape: ShapeIntConst, Category: CategoryConstI32},
	{Name: "i64.const", Shape: ShapeIntConst, Category: CategoryConstI64},
	{Name: "f32.const", Shape: ShapeFloatConst, Category: CategoryConstF32},
	{Name: "f64.const", Shape: ShapeFloatConst, Category: CategoryConstF64},

	{Name: "ref.null", Shape: ShapeHeapType, Category: CategoryRefNull},
	{Name: "ref.is_null", Shape: ShapeNone, Category: CategoryRefIsNull},
	{Name: "ref.as_non_null", Shape: ShapeNone, Category: CategoryRefAsNonNull},
	{Name: "ref.func", Shape: ShapeFuncIdx, Category: CategoryRefFunc},
	{Name: "ref.eq", Shape: ShapeNone, Category: CategoryRefEq},
	{Name: "ref.test", Shape: ShapeRefType, Category: CategoryRefTest},
	{Name: "ref.cast", Shape: ShapeRefType, Category: CategoryRefCast},

	{Name: "struct.new", Shape: ShapeArrayType, Category: CategoryStructNew},
	{Name: "struct.new_default", Shape: ShapeArrayType, Category: CategoryStructNewDefault},
	{Name: "struct.get", Shape: ShapeStructField, Category: CategoryStructGet},
	{Name: "struct.get_s", Shape: ShapeStructField, Category: CategoryStructGet},
	{Name: "struct.get_u", Shape: ShapeStructField, Category: CategoryStructGet},
	{Name: "struct.set", Shape: ShapeStructField, Category: CategoryStructSet},

	{Name: "array.new", Shape: ShapeArrayType, Category: CategoryArrayNew},
	{Name: "array.new_default", Shape: ShapeArrayType, Category: CategoryArrayNewDefault},
	{Name: "array.new_fixed", Shape: ShapeArrayType, Category: CategoryArrayNewFixed},
	{Name: "array.get", Shape: ShapeArrayType, Category: CategoryArrayGet},
	{Name: "array.get_s", Shape: ShapeArrayType, Category: CategoryArrayGet},
	{Name: "array.get_u", Shape: ShapeArrayType, Category: CategoryArrayGet},
	{Name: "array.set", Shape: ShapeArrayType, Category: CategoryArraySet},
	{Name: "array.len", Shape: ShapeNone, Category: CategoryArrayLen},
	{Name: "array.fill", Shape: ShapeArrayType, Category: CategoryArrayFill},
	{Name: "array.copy", Shape: ShapeArrayCopy, Category: CategoryArrayCopy},

	{Name: "i32.load", Shape: ShapeMemArg, Category: CategoryMemoryLoad},
	{Name: "i64.load", Shape: ShapeMemArg, Category: CategoryMemoryLoad},
	{Name: "f32.load", Shape: ShapeMemArg, Category: CategoryMemoryLoad},
	{Name: "f64.load", Shape: ShapeMemArg, Category: CategoryMemoryLoad},
	{Name: "i32.load8_s", Shape: ShapeMemArg, Category: CategoryMemoryLoad},
	{Name: "i32.load8_u", Shape: ShapeMemArg, Category: CategoryMemoryLoad},
	{Name: "i32.load16_s", Shape: ShapeMemArg, Category: CategoryMemoryLoad},
	{Name: "i32.load16_u", Shape: ShapeMemArg, Category: CategoryMemoryLoad},
	{Name: "i64.load32_s", Shape: ShapeMemArg, Category: CategoryMemoryLoad},
	{Name: "i32.store", Shape: ShapeMemArg, Category: CategoryMemoryStore},
	{Name: "i64.store", Shape: ShapeMemArg, Category: CategoryMemoryStore},
	{Name: "f32.store", Shape: ShapeMemArg, Category: CategoryMemoryStore},
	{Name: "f64.store", Shape: ShapeMemArg, Category: CategoryMemoryStore},
	{Name: "i32.store8", Shape: ShapeMemArg, Category: CategoryMemoryStore},
	{Name: "i32.store16", Shape: ShapeMemArg, Category: CategoryMemoryStore},

	{Name: "memory.size", Shape: ShapeMemoryIdx, Category: CategoryMemorySize},
	{Name: "memory.grow", Shape: ShapeMemoryIdx, Category: CategoryMemoryGrow},
	{Name: "memory.copy", Shape: ShapeMemoryCopy, Category: CategoryMemoryCopy},
	{Name: "memory.fill", Shape: ShapeMemoryIdx, Category: CategoryMemoryFill},
	{Name: "memory.init", Shape: ShapeDataIdx, Category: CategoryMemoryInit},
	{Name: "data.drop", Shape: ShapeDataIdx, Category: CategoryDataDrop},

	{Name: "table.get", Shape: ShapeTableIdx, Category: CategoryTableGet},
	{Name: "table.set", Shape: ShapeTableIdx, Category: CategoryTableSet},
	{Name: "table.size", Shape: ShapeTableIdx, Category: CategoryTableSize},
	{Name: "table.grow", Shape: ShapeTableIdx, Category: CategoryTableGrow},
	{Name: "table.fill", Shape: ShapeTableIdx, Category: CategoryTableFill},
	{Name: "table.copy", Shape: ShapeTableCopy, Category: CategoryTableCopy},
	{Name: "table.init", Shape: ShapeElemIdx, Category: CategoryTableInit},
	{Name: "elem.drop", Shape: ShapeElemIdx, Category: CategoryElemDrop},
}
