/*
 * Copyright 2026 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package trace scopes ledger and pouch work as runtime/trace tasks and regions.
package trace

import (
	"context"
	"io"
	"runtime/trace"
)

// Task is a runtime trace task.
type Task = trace.Task

// Region is a runtime trace region.
type Region = trace.Region

// NewTask starts a task of kind and returns a context carrying it.
func NewTask(ctx context.Context, kind string) (context.Context, *Task) {
	return trace.NewTask(ctx, kind)
}

// StartRegion opens a region in the task of ctx. Call End on the same goroutine.
func StartRegion(ctx context.Context, kind string) *Region {
	return trace.StartRegion(ctx, kind)
}

// WithRegion runs fn inside a region of kind.
func WithRegion(ctx context.Context, kind string, fn func()) {
	trace.WithRegion(ctx, kind, fn)
}

// Logf annotates the task of ctx when tracing is enabled.
func Logf(ctx context.Context, category, format string, args ...interface{}) {
	if trace.IsEnabled() {
		trace.Logf(ctx, category, format, args...)
	}
}

// Start enables tracing into w.
func Start(w io.Writer) error { return trace.Start(w) }

// Stop stops tracing.
func Stop() { trace.Stop() }
