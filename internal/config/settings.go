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
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// settings holds one layer's worth of key/value(s) pairs, restricted to a
// fixed allow-list of keys for that layer.
type settings struct {
	allowed map[string]bool
	val     map[string]string
	mval    map[string][]string
}

func newSettings(allowed []string) *settings {
	s := &settings{
		allowed: make(map[string]bool, len(allowed)),
		val:     make(map[string]string),
		mval:    make(map[string][]string),
	}
	for _, k := range allowed {
		s.allowed[k] = true
	}
	return s
}

// Set stores key once; returns an error if key is not allowed at this
// layer or was already set (both conditions the original flags as config
// mistakes rather than silently overwriting).
func (s *settings) Set(key string, val string, mval []string) error {
	if !s.allowed[key] {
		return errors.Errorf("config: %q is not a valid key here", key)
	}
	if _, ok := s.val[key]; ok {
		return errors.Errorf("config: %q should be set only once", key)
	}
	if _, ok := s.mval[key]; ok {
		return errors.Errorf("config: %q should be set only once", key)
	}
	if mval != nil {
		s.mval[key] = mval
	} else {
		s.val[key] = val
	}
	return nil
}

func (s *settings) has(key string) bool {
	_, ok := s.val[key]
	if ok {
		return true
	}
	_, ok = s.mval[key]
	return ok
}

// defaultKeys, globalKeys and endpointKeys mirror defset/gset/tmpepset:
// the fixed set of keys recognized at each cascade layer.
var (
	defaultKeys = []string{"root", "createroot", "user", "ruser", "hourly", "daily", "weekly", "monthly"}

	globalKeys = []string{
		"root", "createroot", "user", "group", "shared",
		"rsyncbin", "rsyncargs", "rsyncexit",
		"hourly", "daily", "weekly", "monthly",
		"ruser", "hostname", "rpath", "exec",
	}

	endpointKeys = append(append([]string{}, globalKeys...), "backup")
)

// Cascade resolves settings across three layers: endpoint overrides
// global, global overrides default. Lookups fall through layer by layer,
// exactly matching defset/gset/tmpepset precedence.
type Cascade struct {
	def *settings
	gl  *settings
	ep  *settings
}

// NewCascade builds a cascade seeded with the fixed defaults: createroot
// defaults to "yes", ruser to "root", and all four interval counts to "0".
func NewCascade() *Cascade {
	def := newSettings(defaultKeys)
	def.val["createroot"] = "yes"
	def.val["ruser"] = "root"
	def.val["hourly"] = "0"
	def.val["daily"] = "0"
	def.val["weekly"] = "0"
	def.val["monthly"] = "0"

	return &Cascade{
		def: def,
		gl:  newSettings(globalKeys),
		ep:  newSettings(endpointKeys),
	}
}

// SetGlobal records one global-layer entry, skipping "backup" entries
// (those are endpoints, handled separately).
func (c *Cascade) SetGlobal(e Entry) error {
	if e.Key == "backup" {
		return nil
	}
	return c.gl.Set(e.Key, e.Val, e.MVal)
}

// ResetEndpoint clears the endpoint-layer settings so the cascade can be
// reused across endpoints, mirroring clrtmpkv(tmpepset, ...).
func (c *Cascade) ResetEndpoint() {
	c.ep = newSettings(endpointKeys)
}

// SetEndpoint records one endpoint-layer entry from a backup block.
func (c *Cascade) SetEndpoint(e Entry) error {
	if e.Key == "backup" {
		return nil
	}
	if e.Block != nil {
		return errors.Errorf("config: endpoint setting %q can not contain a nested block", e.Key)
	}
	return c.ep.Set(e.Key, e.Val, e.MVal)
}

// Get resolves a scalar setting, endpoint overriding global overriding
// default.
func (c *Cascade) Get(key string) (string, bool) {
	if v, ok := c.ep.val[key]; ok {
		return v, true
	}
	if v, ok := c.gl.val[key]; ok {
		return v, true
	}
	if v, ok := c.def.val[key]; ok {
		return v, true
	}
	return "", false
}

// GetMulti resolves a repeatable setting the same way Get does. A layer
// that holds the key as a single scalar value yields it as a one-element
// list.
func (c *Cascade) GetMulti(key string) ([]string, bool) {
	for _, s := range []*settings{c.ep, c.gl, c.def} {
		if v, ok := s.mval[key]; ok {
			return v, true
		}
		if v, ok := s.val[key]; ok {
			return []string{v}, true
		}
	}
	return nil, false
}

// GetBool resolves key and requires it to be exactly "yes" or "no"
// (case-insensitive).
func (c *Cascade) GetBool(key string) (bool, error) {
	v, ok := c.Get(key)
	if !ok {
		return false, errors.Errorf("config: %q is not set", key)
	}
	switch strings.ToLower(v) {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, errors.Errorf("config: %q must be \"yes\" or \"no\", got %q", key, v)
	}
}

// GetInt resolves key as a base-10 integer.
func (c *Cascade) GetInt(key string) (int, error) {
	v, ok := c.Get(key)
	if !ok {
		return 0, errors.Errorf("config: %q is not set", key)
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, errors.Wrapf(err, "config: %q is not a valid number", key)
	}
	return n, nil
}

// GetMultiInt resolves a repeatable numeric setting such as rsyncexit.
func (c *Cascade) GetMultiInt(key string) ([]int, error) {
	vs, ok := c.GetMulti(key)
	if !ok {
		return nil, nil
	}
	out := make([]int, 0, len(vs))
	for _, v := range vs {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, errors.Wrapf(err, "config: %q contains an invalid number %q", key, v)
		}
		out = append(out, n)
	}
	return out, nil
}
