/*
   Copyright The containerd Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package log carries a structured logrus entry on a context.Context, the
// same way callers throughout this tree expect: attach once at a process's
// or child's entry point, then pull it back out anywhere down the call
// stack without threading a logger parameter through every signature.
package log

import (
	"context"

	"github.com/sirupsen/logrus"
)

type loggerKey struct{}

// L is the fallback logger used when no logger has been attached to a
// context. Tests and the root CLI command both mutate this via SetLevel.
var L = logrus.NewEntry(logrus.StandardLogger())

// WithLogger returns a copy of ctx carrying entry, retrievable with G.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, entry)
}

// G returns the logger attached to ctx, or the package default.
func G(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
		return entry
	}
	return L
}
