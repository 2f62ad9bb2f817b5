// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package kerr defines the core's error kinds (spec §7), as predeclared
// sentinel errors in the style of gVisor's errors/linuxerr rather than ad
// hoc formatted strings, so that callers can distinguish kinds with
// errors.Is instead of parsing messages.
package kerr

import "errors"

// Kind identifies one of the error kinds of spec §7.
type Kind int

// The error kinds named by spec §7. Fatal is reserved for the idle-task
// bootstrap: the core never returns it to a caller that can recover.
const (
	KindInvalidArgument Kind = iota + 1
	KindNoIdentity
	KindOutOfMemory
	KindTransient
	KindFatal
)

// kindError is a sentinel error carrying a Kind and a historical negative
// numeric code, for callers that still expect the C source's "negative
// code" convention.
type kindError struct {
	kind Kind
	code int
	msg  string
}

func (e *kindError) Error() string { return e.msg }

// Code returns the historical negative error code associated with e's
// kind, or 0 if e is nil.
func (e *kindError) Code() int {
	if e == nil {
		return 0
	}
	return e.code
}

// Is reports whether target is the same sentinel (by Kind), so that
// errors.Is(err, kerr.InvalidArgument) works regardless of wrapping.
func (e *kindError) Is(target error) bool {
	other, ok := target.(*kindError)
	if !ok {
		return false
	}
	return e.kind == other.kind
}

var (
	// InvalidArgument is returned for a bad affinity value (§4.3 step 1).
	InvalidArgument = &kindError{kind: KindInvalidArgument, code: -1, msg: "invalid argument"}

	// NoIdentity is returned when the pid space is exhausted or a
	// reserved identity is contended (ENOPID in the C source).
	NoIdentity = &kindError{kind: KindNoIdentity, code: -2, msg: "no identity available"}

	// OutOfMemory is returned for task-record or stack allocation
	// failure.
	OutOfMemory = &kindError{kind: KindOutOfMemory, code: -3, msg: "out of memory"}

	// Transient marks event-slot exhaustion and stale cross-CPU
	// delivery. It is never returned across pkg/task's exported
	// boundary; both conditions are absorbed there (pool exhaustion is
	// logged, a stale delivery is dropped silently) per §4.8.
	Transient = &kindError{kind: KindTransient, code: -4, msg: "transient failure"}

	// Fatal marks unrecoverable idle-task bootstrap failure: the CPU
	// has no task to run.
	Fatal = &kindError{kind: KindFatal, code: -5, msg: "fatal: unrecoverable bootstrap failure"}
)

// KindOf returns the Kind carried by err, or 0 if err does not originate
// from this package.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return 0
}

// Code returns the historical negative error code for err, or 0 if err
// does not originate from this package.
func Code(err error) int {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.Code()
	}
	return 0
}
