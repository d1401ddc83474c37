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

	"github.com/spf13/cobra"

	"github.com/cairo-m/cairom/internal/driver"
	"github.com/cairo-m/cairom/pkg/mir"
	"github.com/cairo-m/cairom/pkg/mir/passes"
)

var mirCmd = &cobra.Command{
	Use:   "mir [flags] unit1.json unit2.json ...",
	Short: "print the MIR built from a set of JSON-encoded ASTs",
	Long: `Mir runs the same semantic-analysis and MIR-construction steps compile does,
optionally applies the lowering passes, and prints every function's deterministic
textual form instead of generating CASM.`,
	Run: runMirCmd,
}

func runMirCmd(cmd *cobra.Command, args []string) {
	configureLogging(cmd)

	if len(args) == 0 {
		fmt.Println("mir: no input files given")
		os.Exit(2)
	}

	units := readUnits(args)

	cfg := driver.DefaultPassConfig()
	if GetFlag(cmd, "raw") {
		cfg.SkipMem2Reg = true
		cfg.SkipCleanup = true
		cfg.SROA = passes.SROAConfig{}
	}

	result, err := driver.Compile(units, cfg)
	if err != nil && result == nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if result.Module == nil {
		fmt.Println(driver.DiagnosticsError(result.Diagnostics))
		os.Exit(3)
	}

	// A codegen failure (err != nil here) still leaves a printable Module;
	// `mir` only needs the lowering to have succeeded, so it is reported but
	// not fatal.
	if err != nil {
		fmt.Println(err)
	}

	for i, fn := range result.Module.Functions() {
		if i != 0 {
			fmt.Println()
		}

		if err := mir.PrintFunction(os.Stdout, fn); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	}
}

func init() {
	rootCmd.AddCommand(mirCmd)
	mirCmd.Flags().Bool("raw", false, "skip Mem2RegSSA, SROA and Cleanup (LowerAggregates and codegen's phi lowering still run before printing)")
}
