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

// Package driver assembles pkg/semantic, pkg/mir, pkg/mir/passes,
// pkg/codegen and pkg/vm into the one compile-then-optionally-run pipeline
// the CLI and the LSP daemon both drive. Nothing here parses source text;
// every Unit arrives as an already-built ast.File plus its util/source.File
// (the surface parser is an external collaborator, see pkg/ast's package
// doc), so the pipeline's own job starts at semantic analysis.
package driver

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cairo-m/cairom/internal/m31"
	"github.com/cairo-m/cairom/pkg/ast"
	"github.com/cairo-m/cairom/pkg/casm"
	"github.com/cairo-m/cairom/pkg/codegen"
	"github.com/cairo-m/cairom/pkg/mir"
	"github.com/cairo-m/cairom/pkg/mir/passes"
	"github.com/cairo-m/cairom/pkg/semantic"
	"github.com/cairo-m/cairom/pkg/util/source"
	"github.com/cairo-m/cairom/pkg/vm"
)

// Unit is one source file: its parsed tree and the source text diagnostics
// report spans against.
type Unit struct {
	Text *source.File
	Tree *ast.File
}

// PassConfig selects which MIR passes the pipeline runs, and with what
// configuration, between MIR construction and codegen. The zero value runs
// Mem2RegSSA, LowerAggregates and Cleanup, but its zero SROAConfig
// scalarizes no aggregate; DefaultPassConfig enables SROA as well.
type PassConfig struct {
	SkipMem2Reg bool
	SROA        passes.SROAConfig
	SkipCleanup bool
}

// DefaultPassConfig enables every optimizing pass with generous aggregate
// limits, matching the pipeline an end-to-end `cairom compile` invocation
// runs with no flags.
func DefaultPassConfig() PassConfig {
	return PassConfig{
		SROA: passes.SROAConfig{
			EnableTuples:     true,
			EnableStructs:    true,
			MaxAggregateSize: 64,
		},
	}
}

// Result is everything a Compile call produced: the diagnostics gathered
// across every unit (possibly non-empty even on success, e.g. unused-
// variable warnings) and, if compilation reached codegen, the resolved
// program.
type Result struct {
	Diagnostics []semantic.Diagnostic
	Module      *mir.Module
	Program     *casm.Program
}

// moduleResolver implements semantic.ImportResolver and mir's equivalent by
// mapping a `use` path's first segment to the Index built for the file of
// that name, mirroring pkg/mir.Builder's own moduleName(file) convention:
// a module's name is its file's base name without extension.
type moduleResolver struct {
	byName map[string]*semantic.Index
}

func newModuleResolver() *moduleResolver {
	return &moduleResolver{byName: map[string]*semantic.Index{}}
}

func (r *moduleResolver) register(idx *semantic.Index) {
	r.byName[moduleName(idx.File)] = idx
}

func (r *moduleResolver) ResolveModule(path []string) (*semantic.Index, bool) {
	if len(path) == 0 {
		return nil, false
	}

	idx, ok := r.byName[path[0]]

	return idx, ok
}

func moduleName(file string) string {
	base := filepath.Base(file)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}

	return base
}

// Compile runs every unit through semantic analysis, lowers the whole
// closed set into one MIR module, applies cfg's passes function-by-
// function, and generates CASM. Compilation stops short of MIR/codegen
// (the Result holds only the diagnostics; Module and Program are nil) if
// any unit produced an error-severity diagnostic, since the MIR builder
// assumes a semantically valid input. Warnings (e.g. UnusedVariable) don't
// block the rest of the pipeline. A MIR-builder failure returns a nil
// Result with the error; a codegen failure returns the diagnostics and
// Module, with a nil Program, alongside the error.
func Compile(units []Unit, cfg PassConfig) (*Result, error) {
	resolver := newModuleResolver()

	indices := make([]*semantic.Index, len(units))
	for i, u := range units {
		idx, diags := semantic.BuildIndex(u.Text, u.Tree, resolver)
		indices[i] = idx
		resolver.register(idx)

		logrus.WithFields(logrus.Fields{"file": u.Text.Filename(), "diagnostics": len(diags)}).Debug("driver: semantic analysis complete")
	}

	var allDiags []semantic.Diagnostic

	hasErrors := false

	mirUnits := make([]*mir.Unit, len(units))

	for i, u := range units {
		allDiags = append(allDiags, indices[i].Diagnostics...)
		mirUnits[i] = &mir.Unit{Index: indices[i], Tree: u.Tree}

		for _, d := range indices[i].Diagnostics {
			if d.Severity() == semantic.SeverityError {
				hasErrors = true
			}
		}
	}

	// Cyclic/self-imports are only visible once every unit's import edges
	// are known, so this runs after the per-unit loop above rather than
	// folding into semantic.BuildIndex itself.
	for _, d := range semantic.DetectCyclicImports(indices) {
		allDiags = append(allDiags, d)

		if d.Severity() == semantic.SeverityError {
			hasErrors = true
		}
	}

	if hasErrors {
		return &Result{Diagnostics: allDiags}, nil
	}

	builder, err := mir.NewBuilder(mirUnits, resolver)
	if err != nil {
		return nil, fmt.Errorf("driver: registering units: %w", err)
	}

	module, err := builder.BuildAll()
	if err != nil {
		return nil, fmt.Errorf("driver: lowering to mir: %w", err)
	}

	layout := mir.NewDataLayout()

	for _, fn := range module.Functions() {
		if !cfg.SkipMem2Reg {
			passes.Mem2RegSSA(fn, layout)
		}

		passes.SROA(fn, cfg.SROA)
		passes.LowerAggregates(fn, layout)

		if !cfg.SkipCleanup {
			passes.Cleanup(fn)
		}
	}

	program, err := codegen.Generate(module)
	if err != nil {
		return &Result{Diagnostics: allDiags, Module: module}, err
	}

	return &Result{Diagnostics: allDiags, Module: module, Program: program}, nil
}

// Run executes a successfully compiled program's EntryFunction with args,
// matching the single fixed frame layout pkg/vm.Machine.Run sets up.
func Run(program *casm.Program, entry *mir.Function, args []m31.Element) ([]m31.Element, error) {
	numReturns := 0
	for _, ty := range entry.ReturnType {
		numReturns += mir.NewDataLayout().SizeOf(ty)
	}

	machine := vm.New(program)

	returns, err := machine.Run(args, numReturns)
	if err != nil {
		return nil, fmt.Errorf("driver: running %s: %w", entry.Name, err)
	}

	return returns, nil
}
