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

// Package version holds build-time version information, set via
// -ldflags at release build time the same way the teacher's own version
// package is populated.
package version

var (
	// Package is the Go import path of the module.
	Package = "github.com/snapsd/snapsd"

	// Version holds the complete version number, set by the release build.
	Version = "0.0.0+unknown"

	// Revision is the source control revision the binary was built from.
	Revision = ""
)
