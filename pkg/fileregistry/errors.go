// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package fileregistry tracks which files exist at which site with what
// sizes. The registry is passed around as an explicit value, its
// lifecycle tied to one simulation run rather than to the process.
package fileregistry

import "fmt"

// NotFoundError is returned by operations referencing a missing file or
// site.
type NotFoundError struct {
	Filename string
	Site     string
}

func (e *NotFoundError) Error() string {
	if e.Site != "" {
		return fmt.Sprintf("fileregistry: %q not found at site %q", e.Filename, e.Site)
	}
	return fmt.Sprintf("fileregistry: %q not found at any site", e.Filename)
}

// OutOfStorageError is returned when a create would drive a site's
// remaining storage below zero.
type OutOfStorageError struct {
	Site      string
	Filename  string
	Size      int64
	Remaining int64
}

func (e *OutOfStorageError) Error() string {
	return fmt.Sprintf(
		"fileregistry: creating %q (%d bytes) at site %q would exceed remaining storage (%d bytes)",
		e.Filename, e.Size, e.Site, e.Remaining,
	)
}

// ConflictError is returned when create is called for a (file, site) pair
// that already exists with a different size.
type ConflictError struct {
	Filename     string
	Site         string
	ExistingSize int64
	NewSize      int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"fileregistry: %q at site %q already exists with size %d, cannot recreate with size %d",
		e.Filename, e.Site, e.ExistingSize, e.NewSize,
	)
}
