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
package semantic

import (
	"fmt"
	"strings"

	"github.com/cairo-m/cairom/pkg/util/source"
)

// DiagnosticKind is the closed set of user-facing diagnostic categories.
// Diagnostics never abort compilation of other files; they are collected
// and surfaced to the driver.
type DiagnosticKind uint8

// Diagnostic kinds.
const (
	UndeclaredVariable DiagnosticKind = iota
	DuplicateDefinition
	CyclicImport
	InvalidFunctionCall
	TypeMismatch
	InvalidStructLiteral
	InvalidFieldAccess
	UnusedVariable // warning
)

// Severity classifies whether a Diagnostic is an error or merely advisory.
type Severity uint8

// Severities.
const (
	SeverityError Severity = iota
	SeverityWarning
)

func (k DiagnosticKind) severity() Severity {
	if k == UnusedVariable {
		return SeverityWarning
	}

	return SeverityError
}

// Diagnostic is a single user-facing compilation diagnostic, carrying a
// primary span and optionally related spans (e.g. the first definition of a
// name that was later redeclared).
type Diagnostic struct {
	Kind          DiagnosticKind
	Message       string
	Span          source.Span
	RelatedSpans  []source.Span
	RelatedLabels []string
}

// Severity reports whether this diagnostic is an error or a warning.
func (d Diagnostic) Severity() Severity { return d.Kind.severity() }

// Error implements the error interface so Diagnostic can be returned and
// wrapped like any other Go error at the driver boundary.
func (d Diagnostic) Error() string {
	return fmt.Sprintf("%d:%d: %s", d.Span.Start(), d.Span.End(), d.Message)
}

func undeclaredVariable(name string, span source.Span) Diagnostic {
	return Diagnostic{Kind: UndeclaredVariable, Message: fmt.Sprintf("undeclared variable `%s`", name), Span: span}
}

func duplicateDefinition(name string, span, firstSpan source.Span) Diagnostic {
	return Diagnostic{
		Kind:          DuplicateDefinition,
		Message:       fmt.Sprintf("duplicate definition of `%s`", name),
		Span:          span,
		RelatedSpans:  []source.Span{firstSpan},
		RelatedLabels: []string{"first defined here"},
	}
}

func cyclicImport(path []string, span source.Span) Diagnostic {
	return Diagnostic{Kind: CyclicImport, Message: fmt.Sprintf("cyclic import: %s", strings.Join(path, " -> ")), Span: span}
}

func unusedImport(name string, span source.Span) Diagnostic {
	return Diagnostic{Kind: UnusedVariable, Message: fmt.Sprintf("unused import `%s`", name), Span: span}
}
