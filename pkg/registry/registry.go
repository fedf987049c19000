// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package registry maps dispatcher policy names to factories: policies
// register themselves at program startup and the driver looks them up by
// the name in the run configuration. The lookup tolerates the
// shared-library spellings older run configurations carry, so nothing is
// ever inferred from a filename at load time.
package registry

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jontk/cgsim-dispatcher/pkg/dispatch"
	"github.com/jontk/cgsim-dispatcher/pkg/job"
	"github.com/jontk/cgsim-dispatcher/pkg/logging"
)

// Options carries everything a policy factory may need to construct its
// dispatcher.
type Options struct {
	// PolicyServerAddr is the external decision server endpoint, used only
	// by policies that delegate placement over RPC.
	PolicyServerAddr string

	// PolicyDecisionForm selects the decision server's response form:
	// config.DecisionFormSite (default) or config.DecisionFormSiteAndHost.
	PolicyDecisionForm string

	// Workload supplies jobs when the policy is asked for its workload
	// directly. May be nil when the executor drives ingestion itself.
	Workload func(n int) []*job.Job

	Logger logging.Logger
}

// Factory constructs a dispatcher from the run options.
type Factory func(opts Options) (dispatch.Dispatcher, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds a named policy factory. Registering a name twice panics:
// it can only happen from conflicting init() calls, which is a programming
// error, not a runtime condition.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("registry: policy %q registered twice", name))
	}
	factories[name] = factory
}

// New builds the dispatcher registered under name. The lookup tolerates
// the shared-library spellings older run configurations carry
// ("libFIRST-FIT.so" resolves to "first-fit"), so configs written for the
// symbol-loading plugin scheme keep working.
func New(name string, opts Options) (dispatch.Dispatcher, error) {
	key := Normalize(name)

	mu.RLock()
	factory, ok := factories[key]
	mu.RUnlock()
	if !ok {
		return nil, &UnknownPolicyError{Name: name, Known: Names()}
	}
	return factory(opts)
}

// Names lists every registered policy name, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Normalize reduces a configured plugin reference to a registry key:
// basename, "lib" prefix and any extension stripped, lower-cased.
func Normalize(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimPrefix(base, "lib")
	return strings.ToLower(base)
}

// UnknownPolicyError reports a configured policy name with no registered
// factory.
type UnknownPolicyError struct {
	Name  string
	Known []string
}

func (e *UnknownPolicyError) Error() string {
	return fmt.Sprintf("registry: no policy registered as %q (have %s)", e.Name, strings.Join(e.Known, ", "))
}
