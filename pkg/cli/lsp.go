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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cairo-m/cairom/internal/lspdaemon"
)

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "run the language-server daemon over stdio",
	Long: `Lsp serves one LSP connection on stdin/stdout until the client
disconnects or shuts the process down, hosting the compiler behind the
jsonrpc2-based protocol internal/lspdaemon implements.`,
	Run: runLspCmd,
}

// stdioReadWriteCloser adapts os.Stdin/os.Stdout into the single
// io.ReadWriteCloser jsonrpc2.NewStream wants.
type stdioReadWriteCloser struct{}

func (stdioReadWriteCloser) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioReadWriteCloser) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdioReadWriteCloser) Close() error {
	_ = os.Stdin.Close()
	return os.Stdout.Close()
}

func runLspCmd(cmd *cobra.Command, args []string) {
	configureLogging(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	daemon := lspdaemon.NewDaemon(lspdaemon.Config{DebounceMS: GetInt(cmd, "debounce-ms")})

	if err := daemon.Run(ctx, stdioReadWriteCloser{}); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(lspCmd)
	lspCmd.Flags().Int("debounce-ms", 300, "milliseconds to wait after the last change before re-analyzing a file")
}
