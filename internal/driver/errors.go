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
package driver

import (
	"go.uber.org/multierr"

	"github.com/cairo-m/cairom/pkg/semantic"
)

// DiagnosticsError joins every error-severity Diagnostic in diags into one
// multierr-joined error, for callers (the CLI's compile command) that want
// a single error value to report rather than walking Result.Diagnostics
// themselves. Warnings are omitted; a caller that wants to print those too
// should walk Result.Diagnostics directly instead.
func DiagnosticsError(diags []semantic.Diagnostic) error {
	var err error

	for _, d := range diags {
		if d.Severity() == semantic.SeverityError {
			err = multierr.Append(err, d)
		}
	}

	return err
}
