// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package config

import "errors"

var (
	// ErrMissingGridName is returned when Grid_Name is empty.
	ErrMissingGridName = errors.New("Grid_Name is required")

	// ErrMissingSitesInformation is returned when Sites_Information is empty.
	ErrMissingSitesInformation = errors.New("Sites_Information is required")

	// ErrMissingSitesConnectionInformation is returned when
	// Sites_Connection_Information is empty.
	ErrMissingSitesConnectionInformation = errors.New("Sites_Connection_Information is required")

	// ErrMissingDispatcherPlugin is returned when Dispatcher_Plugin is empty.
	ErrMissingDispatcherPlugin = errors.New("Dispatcher_Plugin is required")

	// ErrMissingOutputDB is returned when Output_DB is empty.
	ErrMissingOutputDB = errors.New("Output_DB is required")

	// ErrInvalidNumOfJobs is returned when Num_of_Jobs is negative.
	ErrInvalidNumOfJobs = errors.New("Num_of_Jobs must be greater than or equal to 0")

	// ErrMissingInputJobCSV is returned when no workload CSV path was given
	// either in the config document or via CGSIM_JOB_CSV.
	ErrMissingInputJobCSV = errors.New("Input_Job_CSV is required (set in config or CGSIM_JOB_CSV)")

	// ErrInvalidPolicyDecisionForm is returned when Policy_Decision_Form is
	// neither "site" nor "site-and-host".
	ErrInvalidPolicyDecisionForm = errors.New(`Policy_Decision_Form must be "site" or "site-and-host"`)
)
