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

// Command genfield writes internal/m31/m31.go from a bavard template.
// It is never invoked automatically; run it manually via "go generate" when
// the template changes. The template holds only the package doc, Modulus,
// Element and reduce, so writing its output drops the rest of that file.
package main

import (
	"fmt"
	"math/big"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/consensys/bavard"
)

const copyrightHolder = "Cairo-M Contributors"

//go:generate go run main.go
func main() {
	bgen := bavard.NewBatchGenerator(copyrightHolder, 2026, "cairom")

	spec := fieldSpec{Name: "m31", Modulus: 1<<31 - 1}

	cfg, err := spec.config()
	assertNoError(err, "for field %q", spec.Name)

	assertNoError(bgen.Generate(cfg, spec.Name, "templates",
		bavard.Entry{
			File:      "../../internal/m31/m31.go",
			Templates: []string{"element.go.tmpl"},
			BuildTag:  "",
		},
	), "for field %q", spec.Name)

	runCmd("gofmt", "-w", "../../internal/m31")
}

func runCmd(name string, arg ...string) {
	fmt.Println(name, strings.Join(arg, " "))
	cmd := exec.Command(name, arg...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	assertNoError(cmd.Run(), "")
}

// fieldSpec names a single prime field to generate an element type for.
// Unlike a multi-limb curve field, Cairo-M has exactly one field (the
// Mersenne-31 prime underlying every VM memory cell), so this stays a single
// entry rather than a slice of specs.
type fieldSpec struct {
	Name    string
	Modulus uint32
}

type fieldConfig struct {
	fieldSpec
	IsMersenne bool
}

func (f fieldSpec) config() (*fieldConfig, error) {
	m := big.NewInt(int64(f.Modulus))
	// Mersenne-31 is 2^31-1; reduction folds high bits rather than using a
	// Montgomery form, since a single 2^31-ish limb needs no multi-precision
	// machinery.
	two31 := new(big.Int).Lsh(big.NewInt(1), 31)
	isMersenne := new(big.Int).Sub(two31, big.NewInt(1)).Cmp(m) == 0

	if !isMersenne {
		return nil, fmt.Errorf("field %q: only Mersenne-31 is supported by this generator", f.Name)
	}

	return &fieldConfig{fieldSpec: f, IsMersenne: true}, nil
}

func assertNoError(err error, contextAndArgs ...any) {
	if err != nil {
		msg := err.Error()

		if len(contextAndArgs) > 0 {
			allArgs := append(slices.Clone(contextAndArgs[1:]), err)
			msg = fmt.Sprintf(contextAndArgs[0].(string)+": %v", allArgs...)
		}

		fmt.Println(msg)
		os.Exit(1)
	}
}
