// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package model

import "fmt"

// DuplicateNameError is returned when AddSite/AddHost/AddDisk is given a
// name already in use within its parent scope.
type DuplicateNameError struct {
	Kind string // "site", "host", or "disk"
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("model: duplicate %s name %q", e.Kind, e.Name)
}

// TopologyMissingError is returned when a SiteID/HostID/DiskID does not
// resolve to an arena entry.
type TopologyMissingError struct {
	Kind string // "site", "host", or "disk"
	ID   int
}

func (e *TopologyMissingError) Error() string {
	return fmt.Sprintf("model: %s id %d not present in grid topology", e.Kind, e.ID)
}

// ResourceInsufficientError is returned by Reserve when the requested
// cores or disk bytes are not available.
type ResourceInsufficientError struct {
	HostID         HostID
	DiskID         DiskID
	CoresRequested int
	CoresAvailable int
	BytesRequested int64
	BytesAvailable int64
}

func (e *ResourceInsufficientError) Error() string {
	return fmt.Sprintf(
		"model: insufficient resources on host %d / disk %d: cores %d/%d, bytes %d/%d",
		e.HostID, e.DiskID, e.CoresRequested, e.CoresAvailable, e.BytesRequested, e.BytesAvailable,
	)
}
