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

package config

import (
	"unicode"

	"github.com/pkg/errors"
)

// HostSpec is what a "backup" value's host string resolves to. Any of
// the three fields may be empty, meaning the block itself must supply it
// via explicit ruser/hostname/rpath settings.
type HostSpec struct {
	RUser    string
	Hostname string
	RPath    string
}

type hostStrState int

const (
	hsStart hostStrState = iota
	hsHostOrUser
	hsHost
	hsPath
	hsError
	hsDone
)

// ParseHostString parses a "backup" value of the form
// "[ruser@]hostname[:rpath]". Control characters anywhere in the string
// make it invalid. An entirely empty string is valid — it simply means
// none of the three components come from here, and the endpoint block
// must supply all of them explicitly.
func ParseHostString(in string) (HostSpec, error) {
	state := hsStart
	var userStart, hostStart, pathStart int
	var userEnd, hostEnd int
	haveUser, haveHost, havePath := false, false, false

	runes := []rune(in)
	for i := 0; i <= len(runes); i++ {
		var r rune
		atEnd := i == len(runes)
		if !atEnd {
			r = runes[i]
		}

		switch state {
		case hsStart:
			switch {
			case atEnd:
				state = hsDone
			case r == ':':
				pathStart = i + 1
				havePath = true
				state = hsPath
			case !unicode.IsControl(r):
				userStart = i
				state = hsHostOrUser
			default:
				state = hsError
			}
		case hsHostOrUser:
			switch {
			case r == '@':
				userEnd = i
				haveUser = true
				hostStart = i + 1
				state = hsHost
			case r == ':':
				hostEnd = i
				haveHost = true
				pathStart = i + 1
				havePath = true
				state = hsPath
			case atEnd:
				hostEnd = i
				haveHost = true
				userStart, userEnd = 0, 0
				haveUser = false
				hostStart = 0
				// whole run from 0..i was the hostname, not a user
				state = hsDone
			case !unicode.IsControl(r):
				// keep scanning
			default:
				state = hsError
			}
		case hsHost:
			switch {
			case atEnd:
				hostEnd = i
				haveHost = true
				state = hsDone
			case r == ':':
				hostEnd = i
				haveHost = true
				pathStart = i + 1
				havePath = true
				state = hsPath
			case !unicode.IsControl(r):
			default:
				state = hsError
			}
		case hsPath:
			switch {
			case atEnd:
				state = hsDone
			case !unicode.IsControl(r):
			default:
				state = hsError
			}
		case hsError, hsDone:
		}

		if state == hsError {
			return HostSpec{}, errors.Errorf("config: invalid backup host string: %q", in)
		}
	}

	if state != hsDone {
		return HostSpec{}, errors.Errorf("config: invalid backup host string: %q", in)
	}

	var spec HostSpec
	if haveUser {
		spec.RUser = string(runes[userStart:userEnd])
	}
	if haveHost {
		// hsHostOrUser's atEnd branch degenerates user+host into just
		// host; recompute the hostname span directly in that case.
		if !haveUser && hostStart == 0 && hostEnd > 0 {
			spec.Hostname = string(runes[0:hostEnd])
		} else {
			spec.Hostname = string(runes[hostStart:hostEnd])
		}
	}
	if havePath {
		spec.RPath = string(runes[pathStart:])
	}
	return spec, nil
}
