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
package driver_test

import (
	"strings"
	"testing"

	"github.com/cairo-m/cairom/internal/driver"
	"github.com/cairo-m/cairom/internal/m31"
	"github.com/cairo-m/cairom/pkg/ast"
	"github.com/cairo-m/cairom/pkg/semantic"
)

// compileAndRun runs units through the full pipeline, fails the test on any
// error-severity diagnostic or pipeline error, runs "main" with args, and
// returns its returned words.
func compileAndRun(t *testing.T, units []driver.Unit, args []m31.Element) []m31.Element {
	t.Helper()

	result, err := driver.Compile(units, driver.DefaultPassConfig())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	for _, d := range result.Diagnostics {
		if d.Severity() == semantic.SeverityError {
			t.Fatalf("unexpected diagnostic: %v", d)
		}
	}

	if result.Program == nil {
		t.Fatalf("Compile produced no program")
	}

	fnID, ok := result.Module.FunctionByName("main")
	if !ok {
		t.Fatalf("module has no main function")
	}

	returns, err := driver.Run(result.Program, result.Module.Function(fnID), args)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	return returns
}

func TestCompile_01_SimpleArithmetic(t *testing.T) {
	sp := &spans{}

	body := block(sp, retStmt(sp, bin(sp, ast.OpAdd, felt(sp, 2), felt(sp, 3))))
	mainFn := fn(sp, "main", nil, []ast.Type{feltTy()}, body)

	units := []driver.Unit{{Text: sourceFile("main.cm"), Tree: file("main.cm", mainFn)}}

	returns := compileAndRun(t, units, nil)
	if len(returns) != 1 || returns[0] != m31.New(5) {
		t.Fatalf("got %v, want [5]", returns)
	}
}

// TestCompile_02_RecursiveFib lowers a self-recursive function and checks
// fib(10) == 55, exercising Call/If/BranchCmp lowering together.
func TestCompile_02_RecursiveFib(t *testing.T) {
	sp := &spans{}

	n := func() *ast.Identifier { return ident(sp, "n") }

	fibBody := block(sp,
		ifStmt(sp, bin(sp, ast.OpEq, n(), felt(sp, 0)), block(sp, retStmt(sp, felt(sp, 0))), nil),
		ifStmt(sp, bin(sp, ast.OpEq, n(), felt(sp, 1)), block(sp, retStmt(sp, felt(sp, 1))), nil),
		retStmt(sp, bin(sp, ast.OpAdd,
			call(sp, ident(sp, "fib"), bin(sp, ast.OpSub, n(), felt(sp, 1))),
			call(sp, ident(sp, "fib"), bin(sp, ast.OpSub, n(), felt(sp, 2))),
		)),
	)
	fibFn := fn(sp, "fib", []ast.Param{param(sp, "n", feltTy())}, []ast.Type{feltTy()}, fibBody)

	mainBody := block(sp, retStmt(sp, call(sp, ident(sp, "fib"), felt(sp, 10))))
	mainFn := fn(sp, "main", nil, []ast.Type{feltTy()}, mainBody)

	units := []driver.Unit{{Text: sourceFile("main.cm"), Tree: file("main.cm", fibFn, mainFn)}}

	returns := compileAndRun(t, units, nil)
	if len(returns) != 1 || returns[0] != m31.New(55) {
		t.Fatalf("got %v, want [55]", returns)
	}
}

// TestCompile_03_Mem2RegPromotesSingleCell reassigns one local variable
// repeatedly and checks that the default pipeline, Mem2RegSSA included,
// returns its final value 3. The builder already keeps such a local in SSA
// form, so no stack slot for it reaches Mem2RegSSA.
func TestCompile_03_Mem2RegPromotesSingleCell(t *testing.T) {
	sp := &spans{}

	x := func() *ast.Identifier { return ident(sp, "x") }

	body := block(sp,
		letStmt(sp, "x", felt(sp, 1)),
		assignStmt(sp, x(), bin(sp, ast.OpAdd, x(), felt(sp, 1))),
		assignStmt(sp, x(), bin(sp, ast.OpAdd, x(), felt(sp, 1))),
		retStmt(sp, x()),
	)
	mainFn := fn(sp, "main", nil, []ast.Type{feltTy()}, body)

	units := []driver.Unit{{Text: sourceFile("main.cm"), Tree: file("main.cm", mainFn)}}

	returns := compileAndRun(t, units, nil)
	if len(returns) != 1 || returns[0] != m31.New(3) {
		t.Fatalf("got %v, want [3]", returns)
	}
}

// TestCompile_04_SROAEliminatesTuple constructs a tuple purely to read both
// elements back out; SROA should scalarize it away entirely rather than
// round-tripping it through memory.
func TestCompile_04_SROAEliminatesTuple(t *testing.T) {
	sp := &spans{}

	p := func() *ast.Identifier { return ident(sp, "p") }

	body := block(sp,
		letStmt(sp, "p", tuple(sp, felt(sp, 2), felt(sp, 3))),
		retStmt(sp, bin(sp, ast.OpAdd, member(sp, p(), "0"), member(sp, p(), "1"))),
	)
	mainFn := fn(sp, "main", nil, []ast.Type{feltTy()}, body)

	units := []driver.Unit{{Text: sourceFile("main.cm"), Tree: file("main.cm", mainFn)}}

	returns := compileAndRun(t, units, nil)
	if len(returns) != 1 || returns[0] != m31.New(5) {
		t.Fatalf("got %v, want [5]", returns)
	}
}

// TestCompile_05_CrossModuleCall resolves `add` across two files purely
// through a `use` declaration, with zero diagnostics expected.
func TestCompile_05_CrossModuleCall(t *testing.T) {
	mathSp := &spans{}
	addBody := block(mathSp, retStmt(mathSp, bin(mathSp, ast.OpAdd, ident(mathSp, "a"), ident(mathSp, "b"))))
	addFn := fn(mathSp, "add", []ast.Param{param(mathSp, "a", feltTy()), param(mathSp, "b", feltTy())}, []ast.Type{feltTy()}, addBody)
	mathFile := file("math.cm", addFn)

	mainSp := &spans{}
	useMath := useDecl(mainSp, []string{"math"}, "add")
	mainBody := block(mainSp, retStmt(mainSp, call(mainSp, ident(mainSp, "add"), felt(mainSp, 2), felt(mainSp, 3))))
	mainFn := fn(mainSp, "main", nil, []ast.Type{feltTy()}, mainBody)
	mainFile := &ast.File{Path: "main.cm", Items: []ast.Item{useMath, mainFn}}

	units := []driver.Unit{
		{Text: sourceFile("math.cm"), Tree: mathFile},
		{Text: sourceFile("main.cm"), Tree: mainFile},
	}

	result, err := driver.Compile(units, driver.DefaultPassConfig())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if len(result.Diagnostics) != 0 {
		t.Fatalf("got %d diagnostics, want 0: %v", len(result.Diagnostics), result.Diagnostics)
	}

	returns := compileAndRun(t, units, nil)
	if len(returns) != 1 || returns[0] != m31.New(5) {
		t.Fatalf("got %v, want [5]", returns)
	}
}

// TestCompile_06_DuplicateImportDiagnostic imports the same local name from
// two different modules and expects a DuplicateDefinition diagnostic
// rather than a panic or a silently-shadowed import.
func TestCompile_06_DuplicateImportDiagnostic(t *testing.T) {
	aSp := &spans{}
	aBody := block(aSp, retStmt(aSp, felt(aSp, 1)))
	aFn := fn(aSp, "add", nil, []ast.Type{feltTy()}, aBody)
	aFile := file("a.cm", aFn)

	bSp := &spans{}
	bBody := block(bSp, retStmt(bSp, felt(bSp, 2)))
	bFn := fn(bSp, "add", nil, []ast.Type{feltTy()}, bBody)
	bFile := file("b.cm", bFn)

	mainSp := &spans{}
	useA := useDecl(mainSp, []string{"a"}, "add")
	useB := useDecl(mainSp, []string{"b"}, "add")
	mainBody := block(mainSp, retStmt(mainSp, call(mainSp, ident(mainSp, "add"))))
	mainFn := fn(mainSp, "main", nil, []ast.Type{feltTy()}, mainBody)
	mainFile := &ast.File{Path: "main.cm", Items: []ast.Item{useA, useB, mainFn}}

	units := []driver.Unit{
		{Text: sourceFile("a.cm"), Tree: aFile},
		{Text: sourceFile("b.cm"), Tree: bFile},
		{Text: sourceFile("main.cm"), Tree: mainFile},
	}

	result, err := driver.Compile(units, driver.DefaultPassConfig())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if result.Program != nil {
		t.Fatalf("expected compilation to stop short of codegen")
	}

	found := 0

	var message string

	for _, d := range result.Diagnostics {
		if d.Kind == semantic.DuplicateDefinition {
			found++
			message = d.Message
		}
	}

	if found != 1 {
		t.Fatalf("got %d DuplicateDefinition diagnostics, want exactly 1: %v", found, result.Diagnostics)
	}

	if !strings.Contains(message, "add") {
		t.Fatalf("DuplicateDefinition message %q does not mention %q", message, "add")
	}
}

// TestCompile_07_SelfImportDiagnostic imports a module from itself and
// expects exactly one CyclicImport diagnostic rather than a silently
// accepted self-reference.
func TestCompile_07_SelfImportDiagnostic(t *testing.T) {
	sp := &spans{}
	useSelf := useDecl(sp, []string{"main"}, "helper")
	addFn := fn(sp, "add", nil, []ast.Type{feltTy()}, block(sp, retStmt(sp, felt(sp, 1))))
	mainFile := &ast.File{Path: "main.cm", Items: []ast.Item{useSelf, addFn}}

	units := []driver.Unit{{Text: sourceFile("main.cm"), Tree: mainFile}}

	result, err := driver.Compile(units, driver.DefaultPassConfig())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if result.Program != nil {
		t.Fatalf("expected compilation to stop short of codegen")
	}

	found := 0

	var message string

	for _, d := range result.Diagnostics {
		if d.Kind == semantic.CyclicImport {
			found++
			message = d.Message
		}
	}

	if found != 1 {
		t.Fatalf("got %d CyclicImport diagnostics, want exactly 1: %v", found, result.Diagnostics)
	}

	if !strings.Contains(message, "main -> main") {
		t.Fatalf("CyclicImport message %q does not mention %q", message, "main -> main")
	}
}

// TestCompile_08_MutualCyclicImportDiagnostic has two modules import from
// each other and expects a CyclicImport diagnostic naming both.
func TestCompile_08_MutualCyclicImportDiagnostic(t *testing.T) {
	aSp := &spans{}
	useB := useDecl(aSp, []string{"module_b"}, "funcB")
	funcA := fn(aSp, "funcA", nil, []ast.Type{feltTy()}, block(aSp, retStmt(aSp, felt(aSp, 1))))
	aFile := &ast.File{Path: "module_a.cm", Items: []ast.Item{useB, funcA}}

	bSp := &spans{}
	useA := useDecl(bSp, []string{"module_a"}, "funcA")
	funcB := fn(bSp, "funcB", nil, []ast.Type{feltTy()}, block(bSp, retStmt(bSp, felt(bSp, 2))))
	bFile := &ast.File{Path: "module_b.cm", Items: []ast.Item{useA, funcB}}

	units := []driver.Unit{
		{Text: sourceFile("module_a.cm"), Tree: aFile},
		{Text: sourceFile("module_b.cm"), Tree: bFile},
	}

	result, err := driver.Compile(units, driver.DefaultPassConfig())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if result.Program != nil {
		t.Fatalf("expected compilation to stop short of codegen")
	}

	found := 0

	for _, d := range result.Diagnostics {
		if d.Kind == semantic.CyclicImport {
			found++

			if !strings.Contains(d.Message, "module_a") || !strings.Contains(d.Message, "module_b") {
				t.Fatalf("CyclicImport message %q does not name both modules", d.Message)
			}
		}
	}

	if found == 0 {
		t.Fatalf("expected a CyclicImport diagnostic, got %v", result.Diagnostics)
	}
}
