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
package cli

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cairo-m/cairom/internal/astio"
	"github.com/cairo-m/cairom/internal/driver"
	"github.com/cairo-m/cairom/internal/m31"
	"github.com/cairo-m/cairom/pkg/mir"
	"github.com/cairo-m/cairom/pkg/mir/passes"
	"github.com/cairo-m/cairom/pkg/vm"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] unit1.json unit2.json ...",
	Short: "compile a set of JSON-encoded ASTs down to a CASM program.json",
	Long: `Compile reads one unit per file (the JSON envelope internal/astio documents),
runs semantic analysis, MIR construction and lowering, and writes the resulting
program as program.json. With --run it additionally executes the entry function
through the VM and can dump trace.bin / memory_trace.bin alongside it.`,
	Run: runCompileCmd,
}

func runCompileCmd(cmd *cobra.Command, args []string) {
	configureLogging(cmd)

	if len(args) == 0 {
		fmt.Println("compile: no input files given")
		os.Exit(2)
	}

	units := readUnits(args)

	cfg := driver.DefaultPassConfig()
	if GetFlag(cmd, "skip-mem2reg") {
		cfg.SkipMem2Reg = true
	}

	maxAgg := GetUint(cmd, "max-aggregate")
	cfg.SROA = passes.SROAConfig{EnableTuples: true, EnableStructs: true, MaxAggregateSize: int(maxAgg)}

	result, err := driver.Compile(units, cfg)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	for _, d := range result.Diagnostics {
		log.WithField("severity", d.Severity()).Warn(d.Error())
	}

	if result.Program == nil {
		fmt.Println(driver.DiagnosticsError(result.Diagnostics))
		os.Exit(3)
	}

	writeProgramJSON(GetString(cmd, "output"), result.Program)

	if !GetFlag(cmd, "run") {
		return
	}

	entryName := GetString(cmd, "entry")

	entryID, ok := result.Module.FunctionByName(entryName)
	if !ok {
		fmt.Printf("compile: no such entry function %q\n", entryName)
		os.Exit(4)
	}

	entry := result.Module.Function(entryID)

	layout := mir.NewDataLayout()

	numReturns := 0
	for _, ty := range entry.ReturnType {
		numReturns += layout.SizeOf(ty)
	}

	machine := vm.New(result.Program)

	returns, err := machine.Run(parseRunArgs(GetStringArray(cmd, "arg")), numReturns)
	if err != nil {
		fmt.Println(err)
		os.Exit(5)
	}

	printReturns(returns)

	if tracePath := GetString(cmd, "trace"); tracePath != "" {
		writeTraceFile(tracePath, machine.Trace.Steps)
	}

	if memPath := GetString(cmd, "memory-trace"); memPath != "" {
		writeMemoryTraceFile(memPath, uint32(result.Program.Len()), machine.Trace.Memory)
	}
}

func readUnits(filenames []string) []driver.Unit {
	units := make([]driver.Unit, len(filenames))

	for i, name := range filenames {
		f, err := os.Open(name)
		if err != nil {
			fmt.Println(err)
			os.Exit(2)
		}

		unit, err := astio.DecodeUnit(f)

		closeErr := f.Close()
		if err != nil {
			fmt.Printf("%s: %v\n", name, err)
			os.Exit(2)
		}

		if closeErr != nil {
			fmt.Printf("%s: %v\n", name, closeErr)
			os.Exit(2)
		}

		units[i] = driver.Unit{Text: unit.Text, Tree: unit.Tree}
	}

	return units
}

func parseRunArgs(raw []string) []m31.Element {
	args := make([]m31.Element, len(raw))

	for i, s := range raw {
		var v uint64

		if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
			fmt.Printf("invalid argument %q: %v\n", s, err)
			os.Exit(2)
		}

		args[i] = m31.New(v)
	}

	return args
}

func printReturns(returns []m31.Element) {
	for i, r := range returns {
		fmt.Printf("return[%d] = %d\n", i, r.ToUint32())
	}
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringP("output", "o", "program.json", "path to write the compiled program.json to")
	compileCmd.Flags().Bool("skip-mem2reg", false, "disable the memory-to-register promotion pass")
	compileCmd.Flags().Uint("max-aggregate", 64, "largest tuple/struct SROA will scalarize")
	compileCmd.Flags().Bool("run", false, "execute the entry function through the VM after compiling")
	compileCmd.Flags().String("entry", "main", "qualified name of the function to run with --run")
	compileCmd.Flags().StringArray("arg", nil, "an argument (as a decimal felt) passed to the entry function, repeatable")
	compileCmd.Flags().String("trace", "", "write a register trace.bin alongside program.json when --run is set")
	compileCmd.Flags().String("memory-trace", "", "write a memory_trace.bin alongside program.json when --run is set")
}
