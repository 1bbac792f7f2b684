package typecheck

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watlang/watls/internal/binder"
	"github.com/watlang/watls/internal/diag"
	"github.com/watlang/watls/internal/parser"
	"github.com/watlang/watls/internal/typeanalysis"
)

// checkSrc runs the full binder-then-typecheck chain the way pipeline.Run
// does, returning the binder's own diagnostics (duplicate/unresolved
// identifiers) alongside the type checker's.
func checkSrc(t *testing.T, src string) []diag.Diagnostic {
	t.Helper()
	res := parser.Parse([]byte(src))
	symbols := binder.Bind(res.Root)
	a := typeanalysis.Analyze(res.Root)
	diags := Check(res.Root, a, symbols)
	diags = append(diags, symbols.Diagnostics...)
	return diags
}

func TestCheckFlagsOperandUnderflow(t *testing.T) {
	diags := checkSrc(t, `(module (func (result i32) (i32.add (i32.const 0))))`)
	require.NotEmpty(t, diags)
	require.Equal(t, diag.CodeOperandStackEmpty, diags[0].Code)
}

func TestCheckAcceptsWellTypedBody(t *testing.T) {
	diags := checkSrc(t, `(module (type $t (func (param i32)))
		(func (type $t) (local.get 0) drop))`)
	require.Empty(t, diags)
}

func TestCheckResolvesCallSignature(t *testing.T) {
	diags := checkSrc(t, `(module
		(func $callee (param i32) (result i32) (local.get 0))
		(func (result i32) (call $callee (i32.const 1))))`)
	require.Empty(t, diags)
}

func TestCheckFlagsResultCountMismatch(t *testing.T) {
	diags := checkSrc(t, `(module (func (block (result i32) (i32.const 0) (i32.const 1))))`)
	require.NotEmpty(t, diags)
}

func TestCheckFlagsIfElseResultMismatch(t *testing.T) {
	diags := checkSrc(t, `(module (func (result i32)
		(if (result i32) (i32.const 1) (then (i32.const 0)))))`)
	require.NotEmpty(t, diags)
	require.Equal(t, diag.CodeTypeMismatch, diags[0].Code)
}

func TestCheckAcceptsIfElseWithMatchingBranches(t *testing.T) {
	diags := checkSrc(t, `(module (func (result i32)
		(if (result i32) (i32.const 1) (then (i32.const 0)) (else (i32.const 2)))))`)
	require.Empty(t, diags)
}

func TestCheckFlagsBranchTargetTypeMismatch(t *testing.T) {
	diags := checkSrc(t, `(module (func (result i32)
		(block $b (result i32) (f32.const 0) (br $b))))`)
	require.NotEmpty(t, diags)
	require.Equal(t, diag.CodeTypeMismatch, diags[0].Code)
}

func TestCheckAcceptsBranchTargetTypeMatch(t *testing.T) {
	diags := checkSrc(t, `(module (func (result i32)
		(block $b (result i32) (i32.const 0) (br $b))))`)
	require.Empty(t, diags)
}

func TestCheckFlagsBranchTableTypeMismatch(t *testing.T) {
	diags := checkSrc(t, `(module (func (result i32)
		(block $b (result i32)
			(f32.const 0) (i32.const 0) (br_table $b $b))))`)
	require.NotEmpty(t, diags)
}

func TestCheckFlagsSelectOperandMismatch(t *testing.T) {
	diags := checkSrc(t, `(module (func (result i32)
		(i32.const 0) (f32.const 0) (i32.const 1) (select)))`)
	require.NotEmpty(t, diags)
	require.Equal(t, diag.CodeTypeMismatch, diags[0].Code)
}

func TestCheckAcceptsSelectWithMatchingOperands(t *testing.T) {
	diags := checkSrc(t, `(module (func (result i32)
		(i32.const 0) (i32.const 5) (i32.const 1) (select)))`)
	require.Empty(t, diags)
}

func TestCheckAcceptsTypedSelect(t *testing.T) {
	diags := checkSrc(t, `(module (func (result i32)
		(i32.const 0) (i32.const 5) (i32.const 1) (select (result i32))))`)
	require.Empty(t, diags)
}

func TestCheckFlagsStructGetOnNonStructType(t *testing.T) {
	diags := checkSrc(t, `(module
		(type $f (func))
		(func (param (ref null $f)) (result i32)
			(struct.get $f 0 (local.get 0))))`)
	require.NotEmpty(t, diags)
	require.Equal(t, diag.CodeUnknownType, diags[0].Code)
}

func TestCheckAcceptsStructNewAndGet(t *testing.T) {
	diags := checkSrc(t, `(module
		(type $s (struct (field i32)))
		(func (result i32)
			(struct.get $s 0 (struct.new $s (i32.const 1)))))`)
	require.Empty(t, diags)
}

func TestCheckFlagsStructFieldIndexOutOfRange(t *testing.T) {
	diags := checkSrc(t, `(module
		(type $s (struct (field i32)))
		(func (param (ref null $s))
			(drop (struct.get $s 9 (local.get 0)))))`)
	require.NotEmpty(t, diags)
	require.Equal(t, diag.CodeUnknownType, diags[0].Code)
}

func TestCheckFlagsArrayNewOnNonArrayType(t *testing.T) {
	diags := checkSrc(t, `(module
		(type $s (struct (field i32)))
		(func (result (ref $s))
			(array.new $s (i32.const 0) (i32.const 1))))`)
	require.NotEmpty(t, diags)
	require.Equal(t, diag.CodeUnknownType, diags[0].Code)
}

func TestCheckAcceptsArrayNewGetSet(t *testing.T) {
	diags := checkSrc(t, `(module
		(type $a (array (mut i32)))
		(func (local (ref null $a))
			(local.set 0 (array.new $a (i32.const 0) (i32.const 3)))
			(array.set $a (local.get 0) (i32.const 0) (i32.const 5))
			(drop (array.get $a (local.get 0) (i32.const 0)))))`)
	require.Empty(t, diags)
}

func TestCheckFlagsUnresolvedTypeImmediate(t *testing.T) {
	diags := checkSrc(t, `(module (func (result i32)
		(struct.get $missing 0 (i32.const 0))))`)
	require.NotEmpty(t, diags)
	require.Equal(t, diag.CodeUnresolvedIdent, diags[0].Code)
}

func TestCheckFlagsCallIndirectOnNonFuncrefTable(t *testing.T) {
	diags := checkSrc(t, `(module
		(type $t (func))
		(table $tab 0 externref)
		(func (i32.const 0) (call_indirect $tab (type $t))))`)
	require.NotEmpty(t, diags)
	require.Equal(t, diag.CodeUnknownType, diags[0].Code)
}

func TestCheckFlagsDuplicateIdentifier(t *testing.T) {
	diags := checkSrc(t, `(module (func $dup) (func $dup))`)
	require.NotEmpty(t, diags)
	require.Equal(t, diag.CodeDuplicateIdent, diags[0].Code)
}

func TestCheckFlagsUnresolvedCallTarget(t *testing.T) {
	diags := checkSrc(t, `(module (func (call $missing)))`)
	require.NotEmpty(t, diags)
	require.Equal(t, diag.CodeUnresolvedIdent, diags[0].Code)
}

func TestCheckAcceptsForwardFunctionReference(t *testing.T) {
	diags := checkSrc(t, `(module
		(func (call $later))
		(func $later))`)
	require.Empty(t, diags)
}

func TestCheckFlagsFinalSupertype(t *testing.T) {
	diags := checkSrc(t, `(module
		(type $base (struct))
		(type $sub (sub $base (struct))))`)
	require.NotEmpty(t, diags)
	require.Equal(t, diag.CodeInvalidRecGroup, diags[0].Code)
}
