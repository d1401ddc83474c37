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

	"github.com/cairo-m/cairom/pkg/vm"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] program.json",
	Short: "execute a compiled program.json through the VM",
	Long: `Run loads a program.json produced by compile and executes it directly,
without repeating semantic analysis or MIR construction. Unlike compile --run,
it has no MIR entry function to read a return arity from, so --returns must be
given explicitly.`,
	Run: runRunCmd,
}

func runRunCmd(cmd *cobra.Command, args []string) {
	configureLogging(cmd)

	if len(args) != 1 {
		fmt.Println("run: expected exactly one program.json path")
		os.Exit(2)
	}

	prog := readProgramJSON(args[0])

	machine := vm.New(prog)

	returns, err := machine.Run(parseRunArgs(GetStringArray(cmd, "arg")), GetInt(cmd, "returns"))
	if err != nil {
		fmt.Println(err)
		os.Exit(5)
	}

	printReturns(returns)

	if tracePath := GetString(cmd, "trace"); tracePath != "" {
		writeTraceFile(tracePath, machine.Trace.Steps)
	}

	if memPath := GetString(cmd, "memory-trace"); memPath != "" {
		writeMemoryTraceFile(memPath, uint32(prog.Len()), machine.Trace.Memory)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringArray("arg", nil, "an argument (as a decimal felt) passed to the entry function, repeatable")
	runCmd.Flags().Int("returns", 0, "number of felt values the entry function returns")
	runCmd.Flags().String("trace", "", "write a register trace.bin alongside execution")
	runCmd.Flags().String("memory-trace", "", "write a memory_trace.bin alongside execution")
}
