// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package simkernel is an in-process stand-in for a full discrete-event
// simulation kernel: hosts, links, disks, the simulated clock, and the
// actor/message-queue runtime.
// The dispatch/execution engine never reaches into it directly; it talks
// to a Kernel purely through the interface in kernel.go, so a production
// deployment could swap in a real distributed simulation backend (SimGrid
// or otherwise) without touching pkg/executor, pkg/activity, or pkg/model.
package simkernel
