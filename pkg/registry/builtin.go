// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"errors"

	"github.com/jontk/cgsim-dispatcher/pkg/analytics"
	"github.com/jontk/cgsim-dispatcher/pkg/config"
	"github.com/jontk/cgsim-dispatcher/pkg/dispatch"
	"github.com/jontk/cgsim-dispatcher/pkg/policyrpc"
	"github.com/jontk/cgsim-dispatcher/pkg/pool"
)

// The three reference policies register here so any binary importing this
// package can resolve them straight from a run configuration.
func init() {
	Register("first-fit", func(opts Options) (dispatch.Dispatcher, error) {
		return dispatch.NewFirstFit(opts.Workload), nil
	})

	Register("weighted-score", func(opts Options) (dispatch.Dispatcher, error) {
		return dispatch.NewWeightedScore(analytics.DefaultResourceWeights(), opts.Workload), nil
	})

	Register("rl-test-plugin", func(opts Options) (dispatch.Dispatcher, error) {
		if opts.PolicyServerAddr == "" {
			return nil, errors.New("registry: external policy requires a decision server address")
		}
		connPool := pool.NewConnPool(pool.DefaultPoolConfig(), opts.Logger)
		client := policyrpc.NewClient(opts.PolicyServerAddr, connPool, opts.Logger)
		if opts.PolicyDecisionForm == config.DecisionFormSiteAndHost {
			client.WithDecisionForm(policyrpc.DecisionSiteAndHost)
		}
		return dispatch.NewExternalPolicy(client, opts.Workload), nil
	})
}
