// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package config loads the JSON run configuration consumed by the
// cgsim-dispatcher CLI.
package config

import (
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config holds the run configuration for a single simulation: the grid
// name, the paths to the topology/connection documents the dispatcher loads
// through pkg/topology, the registered dispatcher plugin to use, the output
// database path, how many jobs to run, and which sites to restrict the run
// to.
type Config struct {
	GridName                   string   `json:"Grid_Name"`
	SitesInformation           string   `json:"Sites_Information"`
	SitesConnectionInformation string   `json:"Sites_Connection_Information"`
	DispatcherPlugin           string   `json:"Dispatcher_Plugin"`
	OutputDB                   string   `json:"Output_DB"`
	NumOfJobs                  int64    `json:"Num_of_Jobs"`
	InputJobCSV                string   `json:"Input_Job_CSV"`
	Sites                      []string `json:"Sites"`

	// PolicyServerAddress is consumed only by policies that delegate
	// placement to an external decision server.
	PolicyServerAddress string `json:"Policy_Server_Address"`

	// PolicyDecisionForm selects the decision server's response form:
	// "site" (default) for the one-hot site vector, "site-and-host" for
	// the older combined one-hot matrix.
	PolicyDecisionForm string `json:"Policy_Decision_Form"`
}

// Recognized Policy_Decision_Form values.
const (
	DecisionFormSite        = "site"
	DecisionFormSiteAndHost = "site-and-host"
)

// DefaultPolicyServerAddress is where the external decision server listens
// unless the configuration overrides it.
const DefaultPolicyServerAddress = "127.0.0.1:5555"

// JobCSVEnvVar is the environment variable that overrides Config.InputJobCSV.
const JobCSVEnvVar = "CGSIM_JOB_CSV"

// Load reads and parses a run configuration document from path, applying
// the CGSIM_JOB_CSV environment override named in the CLI contract.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if override := os.Getenv(JobCSVEnvVar); override != "" {
		cfg.InputJobCSV = override
	}
	if cfg.PolicyServerAddress == "" {
		cfg.PolicyServerAddress = DefaultPolicyServerAddress
	}
	if cfg.PolicyDecisionForm == "" {
		cfg.PolicyDecisionForm = DecisionFormSite
	}

	return cfg, cfg.Validate()
}

// Validate checks that a Config carries everything the dispatcher needs to
// start a run.
func (c *Config) Validate() error {
	if c.GridName == "" {
		return ErrMissingGridName
	}
	if c.SitesInformation == "" {
		return ErrMissingSitesInformation
	}
	if c.SitesConnectionInformation == "" {
		return ErrMissingSitesConnectionInformation
	}
	if c.DispatcherPlugin == "" {
		return ErrMissingDispatcherPlugin
	}
	if c.OutputDB == "" {
		return ErrMissingOutputDB
	}
	if c.NumOfJobs < 0 {
		return ErrInvalidNumOfJobs
	}
	if c.InputJobCSV == "" {
		return ErrMissingInputJobCSV
	}
	switch c.PolicyDecisionForm {
	case "", DecisionFormSite, DecisionFormSiteAndHost:
	default:
		return ErrInvalidPolicyDecisionForm
	}
	return nil
}
