// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package try provides panic bookkeeping for loop worker goroutines.
package try

import "fmt"

// Fault wraps a recovered panic value.
type Fault struct {
	Value any
}

// Error implements the [builtin.error] interface.
func (f Fault) Error() string {
	return fmt.Sprintf("recovered from panic: %v", f.Value)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (f Fault) Unwrap() error {
	err, ok := f.Value.(error)
	if !ok {
		return nil
	}
	return err
}

// Catch must be deferred directly. If the goroutine is panicking,
// Catch invokes onFault with the recovered value and then re-raises
// the panic so it still propagates per the host convention. Catch
// never swallows a panic.
func Catch(onFault func(Fault)) {
	r := recover()
	if r == nil {
		return
	}
	onFault(Fault{Value: r})
	panic(r)
}
