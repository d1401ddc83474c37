// Copyright Cairo-M Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package mir

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cairo-m/cairom/pkg/ast"
	"github.com/cairo-m/cairom/pkg/semantic"
)

// ErrInternal tags every error a Builder returns for a condition the
// semantic pass was supposed to have ruled out already (a missing
// expression id for a known span, a function definition absent from the
// name mapping, an identifier left unresolved post-validation). The driver
// can errors.Is against it to tell "this function's source is bad" apart
// from "the compiler has a bug".
var ErrInternal = errors.New("mir: internal compiler error")

// Unit bundles one source file's AST with the semantic index built for it;
// the Builder needs both to lower every function the file declares.
type Unit struct {
	Index *semantic.Index
	Tree  *ast.File
}

type funcKey struct {
	file string
	def  semantic.DefinitionID
}

type structKey struct {
	file string
	name string
}

// Builder lowers a closed set of semantically-analyzed Units into one
// Module. Construction is two-phase: NewBuilder registers every struct type
// and function signature up front (so forward references and cross-module
// calls always resolve regardless of build order), then BuildAll lowers
// every function body against the now-complete registries.
type Builder struct {
	module       *Module
	units        map[string]*Unit
	orderedUnits []*Unit
	imports      semantic.ImportResolver
	layout       *DataLayout

	funcByDef   map[funcKey]FunctionID
	signatures  map[FunctionID]CallSignature
	structTypes map[structKey]Type
}

// NewBuilder registers every struct type and function signature declared
// across units, then returns a Builder ready for BuildAll. imports resolves
// a `use` module path to the already-built Index of that module, the same
// closure pkg/semantic.BuildIndex was given.
func NewBuilder(units []*Unit, imports semantic.ImportResolver) (*Builder, error) {
	b := &Builder{
		module:       NewModule(),
		units:        map[string]*Unit{},
		orderedUnits: units,
		imports:      imports,
		layout:       NewDataLayout(),
		funcByDef:    map[funcKey]FunctionID{},
		signatures:   map[FunctionID]CallSignature{},
		structTypes:  map[structKey]Type{},
	}

	for _, u := range units {
		b.units[u.Index.File] = u
	}

	for _, u := range units {
		b.registerStructs(u)
	}

	for _, u := range units {
		if err := b.registerFunctions(u, u.Tree.Items, nil); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// registerStructs declares every struct type reachable from u's top-level
// items (including nested inside namespaces) in two passes, so a field of
// struct type S can reference a struct declared later in the same file.
func (b *Builder) registerStructs(u *Unit) {
	var structs []*ast.Struct

	var walk func(items []ast.Item)
	walk = func(items []ast.Item) {
		for _, item := range items {
			switch it := item.(type) {
			case *ast.Struct:
				structs = append(structs, it)
			case *ast.Namespace:
				walk(it.Body)
			}
		}
	}
	walk(u.Tree.Items)

	for _, st := range structs {
		b.structTypes[structKey{u.Index.File, st.Name}] = StructOf(st.Name)
	}

	for _, st := range structs {
		fields := make([]StructField, len(st.Fields))
		for i, f := range st.Fields {
			fields[i] = StructField{Name: f.Name, Type: b.typeFromAST(u.Index.File, f.Type)}
		}

		b.structTypes[structKey{u.Index.File, st.Name}] = StructOf(st.Name, fields...)
	}
}

// registerFunctions allocates a Function (signature only, empty body) and a
// FunctionID for every fn item under items, recursing into namespace bodies
// and accumulating namespacePath for qualified-name construction.
func (b *Builder) registerFunctions(u *Unit, items []ast.Item, namespacePath []string) error {
	for _, item := range items {
		switch it := item.(type) {
		case *ast.Function:
			defID, ok := u.Index.DefinitionByNameSpan(it.NameSpan)
			if !ok {
				return fmt.Errorf("%w: definition not found for function %q", ErrInternal, it.Name)
			}

			paramTypes := make([]Type, len(it.Params))
			for i, p := range it.Params {
				paramTypes[i] = b.typeFromAST(u.Index.File, p.Type)
			}

			returnTypes := make([]Type, len(it.ReturnType))
			for i, t := range it.ReturnType {
				returnTypes[i] = b.typeFromAST(u.Index.File, t)
			}

			fn := NewFunction(qualifiedName(u.Index.File, namespacePath, it.Name), paramTypes, returnTypes)
			fnID := b.module.AddFunction(fn)
			b.funcByDef[funcKey{file: u.Index.File, def: defID}] = fnID
			b.signatures[fnID] = CallSignature{ParamTypes: paramTypes, ReturnTypes: returnTypes}
		case *ast.Namespace:
			nested := append(append([]string{}, namespacePath...), it.Name)
			if err := b.registerFunctions(u, it.Body, nested); err != nil {
				return err
			}
		}
	}

	return nil
}

// BuildAll lowers every registered function's body in turn and returns the
// completed Module.
func (b *Builder) BuildAll() (*Module, error) {
	for _, u := range b.orderedUnits {
		if err := b.buildItems(u, u.Tree.Items, nil); err != nil {
			return nil, err
		}
	}

	return b.module, nil
}

func (b *Builder) buildItems(u *Unit, items []ast.Item, namespacePath []string) error {
	for _, item := range items {
		switch it := item.(type) {
		case *ast.Function:
			if it.Body == nil {
				continue
			}

			defID, ok := u.Index.DefinitionByNameSpan(it.NameSpan)
			if !ok {
				return fmt.Errorf("%w: definition not found for function %q", ErrInternal, it.Name)
			}

			fnID, ok := b.funcByDef[funcKey{file: u.Index.File, def: defID}]
			if !ok {
				return fmt.Errorf("%w: function definition not in mapping: %q", ErrInternal, it.Name)
			}

			fn := b.module.Function(fnID)
			if err := b.buildFunction(u, it, fn); err != nil {
				return fmt.Errorf("mir: building %s: %w", fn.Name, err)
			}
		case *ast.Namespace:
			nested := append(append([]string{}, namespacePath...), it.Name)
			if err := b.buildItems(u, it.Body, nested); err != nil {
				return err
			}
		}
	}

	return nil
}

func (b *Builder) resolveImportedFunction(modulePath []string, item string) (FunctionID, CallSignature, error) {
	target, ok := b.imports.ResolveModule(modulePath)
	if !ok {
		return 0, CallSignature{}, fmt.Errorf("%w: cannot resolve module %v", ErrInternal, modulePath)
	}

	for _, defID := range target.DefinitionsInScope(target.RootScope()) {
		def := target.Definition(defID)
		if def.Name != item {
			continue
		}

		if _, ok := def.Kind.(semantic.FunctionDef); !ok {
			continue
		}

		fnID, ok := b.funcByDef[funcKey{file: target.File, def: defID}]
		if !ok {
			return 0, CallSignature{}, fmt.Errorf("%w: function definition not in mapping: %v::%s", ErrInternal, modulePath, item)
		}

		return fnID, b.signatures[fnID], nil
	}

	return 0, CallSignature{}, fmt.Errorf("%w: unresolved identifier after semantic pass: %v::%s", ErrInternal, modulePath, item)
}

func (b *Builder) structType(file, name string) (Type, bool) {
	if t, ok := b.structTypes[structKey{file, name}]; ok {
		return t, true
	}
	// Struct names have no module-qualification syntax in type annotations
	// (unlike function calls), so a miss against the declaring file falls
	// back to a flat search across every unit's struct table.
	for k, t := range b.structTypes {
		if k.name == name {
			return t, true
		}
	}

	return Type{}, false
}

func (b *Builder) typeFromAST(file string, t ast.Type) Type {
	switch t.Kind {
	case ast.TypeFelt:
		return Felt
	case ast.TypeU32:
		return U32
	case ast.TypeBool:
		return Bool
	case ast.TypeUnit:
		return Unit
	case ast.TypeNamed:
		if st, ok := b.structType(file, t.Name); ok {
			return st
		}

		return Unknown
	case ast.TypeArray:
		return ArrayOf(b.typeFromAST(file, *t.Elem), t.Size)
	default:
		// TypeTuple: the surface grammar carries no per-element types on a
		// tuple type annotation (only tuple expressions do); resolved
		// structurally from the value being annotated instead, see coerce.
		return Unknown
	}
}

func moduleName(file string) string {
	base := filepath.Base(file)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}

	return base
}

func qualifiedName(file string, namespacePath []string, name string) string {
	parts := append([]string{moduleName(file)}, namespacePath...)
	parts = append(parts, name)

	return strings.Join(parts, "::")
}

// loopCtx is the (continue_target, exit_target) pair a break/continue
// targets; pushed on entry to while/loop, popped on exit.
type loopCtx struct {
	continueTarget BlockID
	exitTarget     BlockID
}

// funcBuilder lowers the body of one function, owning its ssaBuilder and
// current-block cursor. One funcBuilder is used per function and discarded.
type funcBuilder struct {
	b   *Builder
	u   *Unit
	fn  *Function
	ssa *ssaBuilder
	cur BlockID

	// declTypes records the MIR type a local variable (let/const/parameter)
	// was bound with, the ty argument readVariable needs at every read site.
	// Its presence also distinguishes a function-local binding (read via
	// ssa.readVariable) from a module-level const (inlined at each use,
	// since it has no per-function SSA home).
	declTypes map[VarKey]Type
	loops     []loopCtx
}

func (b *Builder) buildFunction(u *Unit, astFn *ast.Function, fn *Function) error {
	fb := &funcBuilder{
		b:         b,
		u:         u,
		fn:        fn,
		ssa:       newSSABuilder(fn),
		cur:       fn.EntryID,
		declTypes: map[VarKey]Type{},
	}
	fb.ssa.sealBlock(fn.EntryID)

	for i, p := range astFn.Params {
		defID, ok := u.Index.DefinitionByNameSpan(p.NameSpan)
		if !ok {
			return fb.ice("definition not found for parameter %q", p.Name)
		}

		vk := VarKey(defID)
		fb.declTypes[vk] = fn.ParamTypes[i]
		fb.ssa.writeVariable(vk, fn.EntryID, Op(fn.Params[i]))
	}

	if astFn.Body != nil {
		if err := fb.lowerStmts(astFn.Body.Stmts); err != nil {
			return err
		}
	}

	if fb.fn.Block(fb.cur).Terminator == nil {
		fb.fn.SetTerminator(fb.cur, &Return{})
	}

	ValidateFunction(fb.fn)

	return nil
}

func (fb *funcBuilder) ice(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInternal)
}

func (fb *funcBuilder) newBlock() BlockID { return fb.fn.NewBlock().ID }

func (fb *funcBuilder) exprID(e ast.Expr) (semantic.ExprID, bool) {
	return fb.u.Index.ExpressionIDBySpan(e.ExprSpan())
}

func (fb *funcBuilder) lowerStmts(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if fb.fn.Block(fb.cur).Terminator != nil {
			// Everything after a terminating statement (return/break/
			// continue, or a for-loop's placeholder unreachable) is dead.
			return nil
		}

		if err := fb.lowerStmt(s); err != nil {
			return err
		}
	}

	return nil
}

func (fb *funcBuilder) lowerStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.LetStmt:
		return fb.lowerLet(s)
	case *ast.ConstStmt:
		return fb.lowerConstStmt(s)
	case *ast.ExprStmt:
		_, _, err := fb.lowerExpr(s.Value)
		return err
	case *ast.AssignStmt:
		val, ty, err := fb.lowerExpr(s.Value)
		if err != nil {
			return err
		}

		return fb.lowerAssign(s.Target, val, ty)
	case *ast.IfStmt:
		return fb.lowerIf(s)
	case *ast.WhileStmt:
		return fb.lowerWhile(s)
	case *ast.LoopStmt:
		return fb.lowerLoop(s)
	case *ast.ForStmt:
		return fb.lowerFor(s)
	case *ast.ReturnStmt:
		return fb.lowerReturn(s)
	case *ast.BreakStmt:
		if len(fb.loops) == 0 {
			return fb.ice("break outside loop")
		}

		fb.fn.SetTerminator(fb.cur, &Jump{Target: fb.loops[len(fb.loops)-1].exitTarget})

		return nil
	case *ast.ContinueStmt:
		if len(fb.loops) == 0 {
			return fb.ice("continue outside loop")
		}

		fb.fn.SetTerminator(fb.cur, &Jump{Target: fb.loops[len(fb.loops)-1].continueTarget})

		return nil
	default:
		return fb.ice("unsupported statement form %T", stmt)
	}
}

func (fb *funcBuilder) lowerLet(s *ast.LetStmt) error {
	val, ty, err := fb.lowerExpr(s.Value)
	if err != nil {
		return err
	}

	val, ty, err = fb.coerce(val, ty, s.Type)
	if err != nil {
		return err
	}

	defID, ok := fb.u.Index.DefinitionByNameSpan(s.NameSpan)
	if !ok {
		return fb.ice("definition not found for let binding %q", s.Name)
	}

	vk := VarKey(defID)

	if s.DestructureIndex != nil {
		idx := *s.DestructureIndex
		if ty.Kind != KindTuple || idx < 0 || idx >= len(ty.Elements) {
			return fb.ice("destructure index %d out of range for %q", idx, s.Name)
		}

		elemTy := ty.Elements[idx]
		dest := fb.fn.NewValue(elemTy)
		fb.fn.AppendInstruction(fb.cur, &ExtractTupleElement{DestID: dest, Tuple: val, Index: idx, Ty: elemTy}, elemTy)
		val, ty = Op(dest), elemTy
	}

	fb.declTypes[vk] = ty
	fb.ssa.writeVariable(vk, fb.cur, val)

	return nil
}

func (fb *funcBuilder) lowerConstStmt(s *ast.ConstStmt) error {
	val, ty, err := fb.lowerExpr(s.Value)
	if err != nil {
		return err
	}

	val, ty, err = fb.coerce(val, ty, s.Type)
	if err != nil {
		return err
	}

	defID, ok := fb.u.Index.DefinitionByNameSpan(s.NameSpan)
	if !ok {
		return fb.ice("definition not found for const binding %q", s.Name)
	}

	vk := VarKey(defID)
	fb.declTypes[vk] = ty
	fb.ssa.writeVariable(vk, fb.cur, val)

	return nil
}

func (fb *funcBuilder) lowerReturn(s *ast.ReturnStmt) error {
	if s.Value == nil {
		fb.fn.SetTerminator(fb.cur, &Return{})
		return nil
	}

	val, ty, err := fb.lowerExpr(s.Value)
	if err != nil {
		return err
	}

	if ty.Kind == KindTuple && len(fb.fn.ReturnType) > 1 {
		values := make([]Value, len(ty.Elements))
		for i, et := range ty.Elements {
			dest := fb.fn.NewValue(et)
			fb.fn.AppendInstruction(fb.cur, &ExtractTupleElement{DestID: dest, Tuple: val, Index: i, Ty: et}, et)
			values[i] = Op(dest)
		}

		fb.fn.SetTerminator(fb.cur, &Return{Values: values})

		return nil
	}

	fb.fn.SetTerminator(fb.cur, &Return{Values: []Value{val}})

	return nil
}

// lowerFor leaves the for-loop's range/iterator protocol unresolved (see
// DESIGN.md Open Question log): the statement is recorded by the semantic
// pass but never lowered. Rather than guess at wrong codegen, the block is
// terminated Unreachable behind a descriptive Debug instruction so the gap
// shows up in the textual MIR dump and in driver logs.
func (fb *funcBuilder) lowerFor(s *ast.ForStmt) error {
	fb.fn.AppendInstruction(fb.cur, &Debug{
		Message: fmt.Sprintf("for-loop lowering unimplemented: range/iterator protocol unresolved (variable %q)", s.Name),
	}, Unit)
	fb.fn.SetTerminator(fb.cur, &Unreachable{})

	return nil
}

func (fb *funcBuilder) lowerIf(s *ast.IfStmt) error {
	cond, _, err := fb.lowerExpr(s.Cond)
	if err != nil {
		return err
	}

	thenBlock := fb.newBlock()
	joinBlock := fb.newBlock()
	elseBlock := joinBlock
	hasElse := s.Else != nil

	if hasElse {
		elseBlock = fb.newBlock()
	}

	fb.fn.SetTerminator(fb.cur, &If{Condition: cond, Then: thenBlock, Else: elseBlock})
	fb.ssa.sealBlock(thenBlock)

	if hasElse {
		fb.ssa.sealBlock(elseBlock)
	}

	fb.cur = thenBlock
	if err := fb.lowerStmts(s.Then.Stmts); err != nil {
		return err
	}

	if fb.fn.Block(fb.cur).Terminator == nil {
		fb.fn.SetTerminator(fb.cur, &Jump{Target: joinBlock})
	}

	if hasElse {
		fb.cur = elseBlock
		if err := fb.lowerStmts(s.Else.Stmts); err != nil {
			return err
		}

		if fb.fn.Block(fb.cur).Terminator == nil {
			fb.fn.SetTerminator(fb.cur, &Jump{Target: joinBlock})
		}
	}

	fb.cur = joinBlock
	fb.ssa.sealBlock(joinBlock)

	return nil
}

func (fb *funcBuilder) lowerWhile(s *ast.WhileStmt) error {
	condBlock := fb.newBlock()
	bodyBlock := fb.newBlock()
	exitBlock := fb.newBlock()

	fb.fn.SetTerminator(fb.cur, &Jump{Target: condBlock})

	fb.cur = condBlock

	cond, _, err := fb.lowerExpr(s.Cond)
	if err != nil {
		return err
	}

	fb.fn.SetTerminator(fb.cur, &If{Condition: cond, Then: bodyBlock, Else: exitBlock})
	// bodyBlock's only predecessor is condBlock, final the moment the If is
	// wired, regardless of whether condBlock itself is sealed yet.
	fb.ssa.sealBlock(bodyBlock)

	fb.loops = append(fb.loops, loopCtx{continueTarget: condBlock, exitTarget: exitBlock})
	fb.cur = bodyBlock

	if err := fb.lowerStmts(s.Body.Stmts); err != nil {
		return err
	}

	if fb.fn.Block(fb.cur).Terminator == nil {
		fb.fn.SetTerminator(fb.cur, &Jump{Target: condBlock})
	}

	fb.loops = fb.loops[:len(fb.loops)-1]

	// Only now is condBlock's predecessor set final (entry jump + back edge).
	fb.ssa.sealBlock(condBlock)
	fb.ssa.sealBlock(exitBlock)
	fb.cur = exitBlock

	return nil
}

func (fb *funcBuilder) lowerLoop(s *ast.LoopStmt) error {
	bodyBlock := fb.newBlock()
	exitBlock := fb.newBlock()

	fb.fn.SetTerminator(fb.cur, &Jump{Target: bodyBlock})

	fb.loops = append(fb.loops, loopCtx{continueTarget: bodyBlock, exitTarget: exitBlock})
	fb.cur = bodyBlock

	if err := fb.lowerStmts(s.Body.Stmts); err != nil {
		return err
	}

	if fb.fn.Block(fb.cur).Terminator == nil {
		fb.fn.SetTerminator(fb.cur, &Jump{Target: bodyBlock})
	}

	fb.loops = fb.loops[:len(fb.loops)-1]

	// bodyBlock's predecessor set (entry + every back edge from body-end and
	// any `continue`) is only final once the whole body has been lowered.
	fb.ssa.sealBlock(bodyBlock)
	fb.ssa.sealBlock(exitBlock)
	fb.cur = exitBlock

	return nil
}

// lowerAssign resolves target as an lvalue and records newVal as its new
// current SSA value. A plain identifier rebinds directly; a field/index
// target is a functional update (InsertField/ArrayInsert producing a new
// aggregate value) threaded back up the chain to the identifier it roots at,
// matching the instruction set's "first-class aggregate, pre-lowering"
// design (see pkg/mir.InsertField/InsertTuple/ArrayInsert doc comments).
func (fb *funcBuilder) lowerAssign(target ast.Expr, newVal Value, newTy Type) error {
	switch t := target.(type) {
	case *ast.Identifier:
		exprID, ok := fb.exprID(t)
		if !ok {
			return fb.ice("missing expression id for assignment target %q", t.Name)
		}

		defID, _, ok := fb.u.Index.DefinitionForIdentifierExpr(exprID)
		if !ok {
			return fb.ice("unresolved identifier after semantic pass: %s", t.Name)
		}

		vk := VarKey(defID)
		fb.declTypes[vk] = newTy
		fb.ssa.writeVariable(vk, fb.cur, newVal)

		return nil
	case *ast.MemberExpr:
		base, baseTy, err := fb.lowerExpr(t.Base)
		if err != nil {
			return err
		}

		switch baseTy.Kind {
		case KindStruct:
			dest := fb.fn.NewValue(baseTy)
			fb.fn.AppendInstruction(fb.cur, &InsertField{DestID: dest, StructVal: base, FieldName: t.Field, NewValue: newVal, Ty: baseTy}, baseTy)

			return fb.lowerAssign(t.Base, Op(dest), baseTy)
		case KindTuple:
			idx, convErr := strconv.Atoi(t.Field)
			if convErr != nil || idx < 0 || idx >= len(baseTy.Elements) {
				return fb.ice("invalid tuple field %q in assignment target", t.Field)
			}

			dest := fb.fn.NewValue(baseTy)
			fb.fn.AppendInstruction(fb.cur, &InsertTuple{DestID: dest, TupleVal: base, Index: idx, NewValue: newVal, Ty: baseTy}, baseTy)

			return fb.lowerAssign(t.Base, Op(dest), baseTy)
		default:
			return fb.ice("member assignment target %q is not an aggregate", t.Field)
		}
	case *ast.IndexExpr:
		base, baseTy, err := fb.lowerExpr(t.Base)
		if err != nil {
			return err
		}

		idxVal, _, err := fb.lowerExpr(t.Index)
		if err != nil {
			return err
		}

		if baseTy.Kind != KindFixedArray {
			return fb.ice("index assignment target is not an array")
		}

		dest := fb.fn.NewValue(baseTy)
		fb.fn.AppendInstruction(fb.cur, &ArrayInsert{DestID: dest, Array: base, Index: idxVal, NewValue: newVal, ArrayTy: baseTy}, baseTy)

		return fb.lowerAssign(t.Base, Op(dest), baseTy)
	default:
		return fb.ice("unsupported assignment target form %T", target)
	}
}

// coerce emits a Cast when annotated names a MIR type that differs from the
// already-lowered value's inferred type; used by let/const bindings that
// carry an explicit type annotation (e.g. a u32-typed let bound to a literal
// the builder otherwise defaults to felt).
func (fb *funcBuilder) coerce(val Value, ty Type, annotated *ast.Type) (Value, Type, error) {
	if annotated == nil {
		return val, ty, nil
	}

	want := fb.b.typeFromAST(fb.u.Index.File, *annotated)
	if want.Equal(ty) {
		return val, ty, nil
	}

	dest := fb.fn.NewValue(want)
	fb.fn.AppendInstruction(fb.cur, &Cast{DestID: dest, Source: val, FromTy: ty, ToTy: want}, want)

	return Op(dest), want, nil
}

func (fb *funcBuilder) emitAssign(src Value, ty Type) (Value, Type, error) {
	dest := fb.fn.NewValue(ty)
	fb.fn.AppendInstruction(fb.cur, &Assign{DestID: dest, Source: src, Ty: ty}, ty)

	return Op(dest), ty, nil
}

func (fb *funcBuilder) lowerExpr(expr ast.Expr) (Value, Type, error) {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		// Defaults to felt; a u32-typed let/const annotation widens it via
		// coerce. There is no standalone type checker in this pipeline to
		// pin the literal's type any earlier.
		return fb.emitAssign(Int(e.Value), Felt)
	case *ast.BoolLiteral:
		return fb.emitAssign(BoolVal(e.Value), Bool)
	case *ast.Identifier:
		return fb.lowerIdentifier(e)
	case *ast.BinaryExpr:
		return fb.lowerBinary(e)
	case *ast.UnaryExpr:
		return fb.lowerUnary(e)
	case *ast.CallExpr:
		return fb.lowerCall(e)
	case *ast.MemberExpr:
		return fb.lowerMember(e)
	case *ast.IndexExpr:
		return fb.lowerIndex(e)
	case *ast.TupleExpr:
		return fb.lowerTuple(e)
	case *ast.StructLiteralExpr:
		return fb.lowerStructLiteral(e)
	case *ast.ArrayLiteralExpr:
		return fb.lowerArrayLiteral(e)
	default:
		return nil, Type{}, fb.ice("unsupported expression form %T", expr)
	}
}

func (fb *funcBuilder) lowerIdentifier(e *ast.Identifier) (Value, Type, error) {
	exprID, ok := fb.exprID(e)
	if !ok {
		return nil, Type{}, fb.ice("missing expression id for identifier %q", e.Name)
	}

	defID, def, ok := fb.u.Index.DefinitionForIdentifierExpr(exprID)
	if !ok {
		return nil, Type{}, fb.ice("unresolved identifier after semantic pass: %s", e.Name)
	}

	vk := VarKey(defID)
	if ty, ok := fb.declTypes[vk]; ok {
		return fb.ssa.readVariable(vk, fb.cur, ty), ty, nil
	}

	// No per-function SSA home: a module-level const, inlined at each use.
	if k, ok := def.Kind.(semantic.ConstDef); ok {
		return fb.lowerExpr(fb.u.Index.Expression(k.ValueExpr).Node)
	}

	return nil, Type{}, fb.ice("identifier %q does not name a value", e.Name)
}

func (fb *funcBuilder) lowerBinary(e *ast.BinaryExpr) (Value, Type, error) {
	left, leftTy, err := fb.lowerExpr(e.Left)
	if err != nil {
		return nil, Type{}, err
	}

	right, rightTy, err := fb.lowerExpr(e.Right)
	if err != nil {
		return nil, Type{}, err
	}

	op := binOpFromAST(e.Op)

	switch op {
	case Eq, Neq, Lt, Lte, Gt, Gte, And, Or:
		left, right = fb.widenToCommon(left, leftTy, right, rightTy)
		dest := fb.fn.NewValue(Bool)
		fb.fn.AppendInstruction(fb.cur, &BinaryOp{DestID: dest, Op: op, Left: left, Right: right, Ty: Bool}, Bool)

		return Op(dest), Bool, nil
	default:
		left, right = fb.widenToCommon(left, leftTy, right, rightTy)
		ty := leftTy
		if rightTy.Kind == KindU32 {
			ty = rightTy
		}

		dest := fb.fn.NewValue(ty)
		fb.fn.AppendInstruction(fb.cur, &BinaryOp{DestID: dest, Op: op, Left: left, Right: right, Ty: ty}, ty)

		return Op(dest), ty, nil
	}
}

// widenToCommon casts a felt operand up to u32 when its sibling is u32, the
// only implicit conversion the surface language performs; every other type
// mismatch is left for a future type-checking pass to diagnose.
func (fb *funcBuilder) widenToCommon(left Value, leftTy Type, right Value, rightTy Type) (Value, Value) {
	if leftTy.Kind == KindFelt && rightTy.Kind == KindU32 {
		dest := fb.fn.NewValue(U32)
		fb.fn.AppendInstruction(fb.cur, &Cast{DestID: dest, Source: left, FromTy: leftTy, ToTy: U32}, U32)

		return Op(dest), right
	}

	if rightTy.Kind == KindFelt && leftTy.Kind == KindU32 {
		dest := fb.fn.NewValue(U32)
		fb.fn.AppendInstruction(fb.cur, &Cast{DestID: dest, Source: right, FromTy: rightTy, ToTy: U32}, U32)

		return left, Op(dest)
	}

	return left, right
}

func (fb *funcBuilder) lowerUnary(e *ast.UnaryExpr) (Value, Type, error) {
	src, ty, err := fb.lowerExpr(e.Operand)
	if err != nil {
		return nil, Type{}, err
	}

	op := unOpFromAST(e.Op)
	dest := fb.fn.NewValue(ty)
	fb.fn.AppendInstruction(fb.cur, &UnaryOp{DestID: dest, Op: op, Source: src, Ty: ty}, ty)

	return Op(dest), ty, nil
}

func (fb *funcBuilder) lowerCall(e *ast.CallExpr) (Value, Type, error) {
	fnID, sig, err := fb.resolveCallee(e.Callee)
	if err != nil {
		return nil, Type{}, err
	}

	args := make([]Value, len(e.Args))

	for i, a := range e.Args {
		v, _, err := fb.lowerExpr(a)
		if err != nil {
			return nil, Type{}, err
		}

		args[i] = v
	}

	switch len(sig.ReturnTypes) {
	case 0:
		fb.fn.AppendInstruction(fb.cur, &VoidCall{Callee: fnID, Args: args, Signature: sig}, Unit)

		return UnitVal, Unit, nil
	case 1:
		dest := fb.fn.NewValue(sig.ReturnTypes[0])
		fb.fn.AppendInstruction(fb.cur, &Call{DestIDs: []ValueID{dest}, Callee: fnID, Args: args, Signature: sig}, sig.ReturnTypes[0])

		return Op(dest), sig.ReturnTypes[0], nil
	default:
		// A multi-return function is scalarized at its call site into a
		// tuple value, so every CallExpr yields exactly one Value+Type.
		dests := make([]ValueID, len(sig.ReturnTypes))
		for i, t := range sig.ReturnTypes {
			dests[i] = fb.fn.NewValue(t)
		}

		fb.fn.AppendInstruction(fb.cur, &Call{DestIDs: dests, Callee: fnID, Args: args, Signature: sig}, sig.ReturnTypes[0])

		tupleTy := TupleOf(sig.ReturnTypes...)
		elems := make([]Value, len(dests))

		for i, d := range dests {
			elems[i] = Op(d)
		}

		tdest := fb.fn.NewValue(tupleTy)
		fb.fn.AppendInstruction(fb.cur, &MakeTuple{DestID: tdest, Elements: elems, Ty: tupleTy}, tupleTy)

		return Op(tdest), tupleTy, nil
	}
}

// resolveCallee resolves a call's callee expression to a registered
// FunctionID: a bare identifier naming a local or imported function, or a
// `base.name` qualified reference naming a namespace member or a module
// function: module.function qualified references resolve the same way as
// bare names.
func (fb *funcBuilder) resolveCallee(callee ast.Expr) (FunctionID, CallSignature, error) {
	switch c := callee.(type) {
	case *ast.Identifier:
		exprID, ok := fb.exprID(c)
		if !ok {
			return 0, CallSignature{}, fb.ice("missing expression id for callee %q", c.Name)
		}

		defID, def, ok := fb.u.Index.DefinitionForIdentifierExpr(exprID)
		if !ok {
			return 0, CallSignature{}, fb.ice("unresolved identifier after semantic pass: %s", c.Name)
		}

		switch k := def.Kind.(type) {
		case semantic.FunctionDef:
			fnID, ok := fb.b.funcByDef[funcKey{file: fb.u.Index.File, def: defID}]
			if !ok {
				return 0, CallSignature{}, fb.ice("function definition not in mapping: %s", c.Name)
			}

			return fnID, fb.b.signatures[fnID], nil
		case semantic.UseDef:
			fnID, sig, err := fb.b.resolveImportedFunction(k.ModulePath, k.ImportedItem)
			if err != nil {
				return 0, CallSignature{}, fb.ice("%s", err)
			}

			return fnID, sig, nil
		default:
			return 0, CallSignature{}, fb.ice("identifier %q does not name a function", c.Name)
		}
	case *ast.MemberExpr:
		return fb.resolveQualifiedCallee(c)
	default:
		return 0, CallSignature{}, fb.ice("unsupported call target expression %T", callee)
	}
}

func (fb *funcBuilder) resolveQualifiedCallee(m *ast.MemberExpr) (FunctionID, CallSignature, error) {
	baseIdent, ok := m.Base.(*ast.Identifier)
	if !ok {
		return 0, CallSignature{}, fb.ice("unsupported qualified call target")
	}

	if exprID, ok := fb.exprID(baseIdent); ok {
		if _, def, ok := fb.u.Index.DefinitionForIdentifierExpr(exprID); ok {
			if ns, ok := def.Kind.(semantic.NamespaceDef); ok {
				for _, innerID := range fb.u.Index.DefinitionsInScope(ns.BodyScope) {
					inner := fb.u.Index.Definition(innerID)
					if inner.Name != m.Field {
						continue
					}

					if _, ok := inner.Kind.(semantic.FunctionDef); !ok {
						continue
					}

					fnID, ok := fb.b.funcByDef[funcKey{file: fb.u.Index.File, def: innerID}]
					if !ok {
						return 0, CallSignature{}, fb.ice("function definition not in mapping: %s.%s", baseIdent.Name, m.Field)
					}

					return fnID, fb.b.signatures[fnID], nil
				}

				return 0, CallSignature{}, fb.ice("namespace %q has no function %q", baseIdent.Name, m.Field)
			}
		}
	}

	// Base did not resolve to a local namespace: treat it as a bare module
	// path segment, the `use`-free `module.function(...)` qualified form.
	fnID, sig, err := fb.b.resolveImportedFunction([]string{baseIdent.Name}, m.Field)
	if err != nil {
		return 0, CallSignature{}, fb.ice("%s", err)
	}

	return fnID, sig, nil
}

func (fb *funcBuilder) lowerMember(e *ast.MemberExpr) (Value, Type, error) {
	base, baseTy, err := fb.lowerExpr(e.Base)
	if err != nil {
		return nil, Type{}, err
	}

	switch baseTy.Kind {
	case KindStruct:
		fieldTy := fb.b.layout.FieldType(baseTy, e.Field)
		dest := fb.fn.NewValue(fieldTy)
		fb.fn.AppendInstruction(fb.cur, &ExtractStructField{DestID: dest, StructVal: base, FieldName: e.Field, Ty: fieldTy}, fieldTy)

		return Op(dest), fieldTy, nil
	case KindTuple:
		idx, convErr := strconv.Atoi(e.Field)
		if convErr != nil || idx < 0 || idx >= len(baseTy.Elements) {
			return nil, Type{}, fb.ice("invalid tuple field %q", e.Field)
		}

		elemTy := baseTy.Elements[idx]
		dest := fb.fn.NewValue(elemTy)
		fb.fn.AppendInstruction(fb.cur, &ExtractTupleElement{DestID: dest, Tuple: base, Index: idx, Ty: elemTy}, elemTy)

		return Op(dest), elemTy, nil
	default:
		return nil, Type{}, fb.ice("member access %q on non-aggregate type %s", e.Field, baseTy)
	}
}

func (fb *funcBuilder) lowerIndex(e *ast.IndexExpr) (Value, Type, error) {
	base, baseTy, err := fb.lowerExpr(e.Base)
	if err != nil {
		return nil, Type{}, err
	}

	idx, _, err := fb.lowerExpr(e.Index)
	if err != nil {
		return nil, Type{}, err
	}

	if baseTy.Kind != KindFixedArray {
		return nil, Type{}, fb.ice("index access on non-array type %s", baseTy)
	}

	elemTy := *baseTy.Elem
	dest := fb.fn.NewValue(elemTy)
	fb.fn.AppendInstruction(fb.cur, &ArrayIndex{DestID: dest, Array: base, Index: idx, ElementTy: elemTy}, elemTy)

	return Op(dest), elemTy, nil
}

func (fb *funcBuilder) lowerTuple(e *ast.TupleExpr) (Value, Type, error) {
	elems := make([]Value, len(e.Elements))
	elemTys := make([]Type, len(e.Elements))

	for i, el := range e.Elements {
		v, t, err := fb.lowerExpr(el)
		if err != nil {
			return nil, Type{}, err
		}

		elems[i], elemTys[i] = v, t
	}

	ty := TupleOf(elemTys...)
	dest := fb.fn.NewValue(ty)
	fb.fn.AppendInstruction(fb.cur, &MakeTuple{DestID: dest, Elements: elems, Ty: ty}, ty)

	return Op(dest), ty, nil
}

func (fb *funcBuilder) lowerStructLiteral(e *ast.StructLiteralExpr) (Value, Type, error) {
	ty, ok := fb.b.structType(fb.u.Index.File, e.StructName)
	if !ok {
		return nil, Type{}, fb.ice("unknown struct type %q", e.StructName)
	}

	fields := make([]StructFieldInit, len(e.Fields))

	for i, f := range e.Fields {
		v, _, err := fb.lowerExpr(f.Value)
		if err != nil {
			return nil, Type{}, err
		}

		fields[i] = StructFieldInit{Name: f.Name, Value: v}
	}

	dest := fb.fn.NewValue(ty)
	fb.fn.AppendInstruction(fb.cur, &MakeStruct{DestID: dest, Fields: fields, Ty: ty}, ty)

	return Op(dest), ty, nil
}

func (fb *funcBuilder) lowerArrayLiteral(e *ast.ArrayLiteralExpr) (Value, Type, error) {
	elems := make([]Value, len(e.Elements))

	var elemTy Type

	for i, el := range e.Elements {
		v, t, err := fb.lowerExpr(el)
		if err != nil {
			return nil, Type{}, err
		}

		elems[i] = v
		if i == 0 {
			elemTy = t
		}
	}

	ty := ArrayOf(elemTy, uint64(len(elems)))
	dest := fb.fn.NewValue(ty)
	fb.fn.AppendInstruction(fb.cur, &MakeFixedArray{DestID: dest, Elements: elems, ElementTy: elemTy}, ty)

	return Op(dest), ty, nil
}

func binOpFromAST(op ast.BinaryOp) BinaryOpKind {
	switch op {
	case ast.OpAdd:
		return Add
	case ast.OpSub:
		return Sub
	case ast.OpMul:
		return Mul
	case ast.OpDiv:
		return Div
	case ast.OpEq:
		return Eq
	case ast.OpNeq:
		return Neq
	case ast.OpLt:
		return Lt
	case ast.OpLte:
		return Lte
	case ast.OpGt:
		return Gt
	case ast.OpGte:
		return Gte
	case ast.OpAnd:
		return And
	default:
		return Or
	}
}

func unOpFromAST(op ast.UnaryOp) UnaryOpKind {
	if op == ast.OpNot {
		return Not
	}

	return Neg
}
