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
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cairo-m/cairom/pkg/casm"
	"github.com/cairo-m/cairom/pkg/util"
)

var asmCmd = &cobra.Command{
	Use:   "asm program.json",
	Short: "disassemble a compiled program.json to text",
	Long: `Asm reads the program.json a compile invocation produced and prints its
disassembled form: one resolved instruction per line.`,
	Run: runAsmCmd,
}

func runAsmCmd(cmd *cobra.Command, args []string) {
	configureLogging(cmd)

	if len(args) != 1 {
		fmt.Println("asm: expected exactly one program.json path")
		os.Exit(2)
	}

	prog := readProgramJSON(args[0])

	if GetFlag(cmd, "table") {
		printProgramTable(prog)
		return
	}

	fmt.Print(prog.String())
}

// printProgramTable renders prog as an aligned index/opcode/operand/label
// table instead of asm's default "idx: mnemonic a, b, c" line format.
func printProgramTable(prog *casm.Program) {
	labelsByIndex := make(map[int]string, len(prog.Labels))
	for label, idx := range prog.Labels {
		labelsByIndex[idx] = string(label)
	}

	const cols = 5

	t := util.NewTablePrinter(cols, uint(prog.Len())+1)
	t.SetRow(0, "idx", "opcode", "a", "b", "c")

	for i, instr := range prog.Instructions {
		label := labelsByIndex[i]
		idx := strconv.Itoa(i)

		if label != "" {
			idx = fmt.Sprintf("%s (%s)", idx, label)
		}

		t.SetRow(uint(i+1), idx, instr.Opcode.String(), instr.A.String(), instr.B.String(), instr.C.String())
	}

	t.Print()
}

func readProgramJSON(path string) *casm.Program {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	prog := &casm.Program{}
	if err := prog.UnmarshalJSON(data); err != nil {
		fmt.Printf("%s: %v\n", path, err)
		os.Exit(2)
	}

	return prog
}

func init() {
	rootCmd.AddCommand(asmCmd)
	asmCmd.Flags().Bool("table", false, "print an aligned idx/opcode/operand table instead of one line per instruction")
}
