// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// WrapError converts a generic error into a structured DispatchError. It is
// used at the boundary of the policy RPC client, where errors originate from
// net.Conn and must be classified into the error taxonomy before the
// executor can decide on a recovery strategy.
func WrapError(err error) *DispatchError {
	if err == nil {
		return nil
	}

	var dispatchErr *DispatchError
	if stderrors.As(err, &dispatchErr) {
		return dispatchErr
	}

	if stderrors.Is(err, context.Canceled) {
		return NewDispatchErrorWithCause(ErrorCodeUnknown, "operation was canceled", err)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewDispatchErrorWithCause(ErrorCodeConnectFailed, "operation timed out", err)
	}

	if netErr := classifyNetworkError(err); netErr != nil {
		return netErr
	}

	return NewDispatchErrorWithCause(ErrorCodeUnknown, err.Error(), err)
}

// classifyNetworkError identifies and wraps transport errors raised while
// talking to the external decision server.
func classifyNetworkError(err error) *DispatchError {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, context.Canceled) {
		return NewDispatchErrorWithCause(ErrorCodeUnknown, "operation was canceled", err)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewDispatchErrorWithCause(ErrorCodeConnectFailed, "operation deadline exceeded", err)
	}

	errStr := err.Error()

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewDispatchErrorWithCause(ErrorCodeConnectFailed, "decision server connection timed out", err)
		}
		if strings.Contains(errStr, "connection reset") ||
			strings.Contains(errStr, "broken pipe") ||
			strings.Contains(errStr, "network is unreachable") {
			return NewDispatchErrorWithCause(ErrorCodeConnectFailed, "decision server connection dropped", err)
		}
	}

	switch {
	case strings.Contains(errStr, "connection refused"):
		return NewDispatchErrorWithCause(ErrorCodeConnectFailed, "decision server refused connection", err)
	case strings.Contains(errStr, "no such host"):
		return NewDispatchErrorWithCause(ErrorCodeConnectFailed, "decision server host resolution failed", err)
	case strings.Contains(errStr, "timeout"):
		return NewDispatchErrorWithCause(ErrorCodeConnectFailed, "decision server request timed out", err)
	}

	var opErr *net.OpError
	if stderrors.As(err, &opErr) {
		var dnsErr *net.DNSError
		if stderrors.As(opErr.Err, &dnsErr) {
			return NewDispatchErrorWithCause(ErrorCodeConnectFailed, "decision server DNS lookup failed", dnsErr)
		}
		var syscallErr syscall.Errno
		if stderrors.As(opErr.Err, &syscallErr) {
			switch syscallErr {
			case syscall.ECONNREFUSED:
				return NewDispatchErrorWithCause(ErrorCodeConnectFailed, "decision server connection refused", err)
			case syscall.ETIMEDOUT:
				return NewDispatchErrorWithCause(ErrorCodeConnectFailed, "decision server connection timed out", err)
			case syscall.ENETUNREACH:
				return NewDispatchErrorWithCause(ErrorCodeConnectFailed, "decision server network unreachable", err)
			}
		}
	}

	return nil
}

// NewConfigError creates errors for invalid grid/workload configuration.
func NewConfigError(message string, details ...string) *DispatchError {
	err := NewDispatchError(ErrorCodeInvalidConfiguration, message)
	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}
	return err
}

// NewJobPlacementError creates a placement-failure error for a specific job,
// classifying the cause into the resource/policy taxonomy by inspecting its
// text, the same classification-by-substring shape used for upstream
// daemon responses.
func NewJobPlacementError(jobID string, cause error) *DispatchError {
	var code ErrorCode
	var message string

	causeStr := cause.Error()
	switch {
	case strings.Contains(causeStr, "insufficient cores") || strings.Contains(causeStr, "insufficient storage"):
		code = ErrorCodeResourceInsufficient
		message = fmt.Sprintf("job %s: no host currently satisfies its resource requirements", jobID)
	case strings.Contains(causeStr, "pending"):
		code = ErrorCodePolicyPending
		message = fmt.Sprintf("job %s: placement policy deferred a decision", jobID)
	default:
		code = ErrorCodePolicyFailed
		message = fmt.Sprintf("job %s: placement failed", jobID)
	}

	err := NewDispatchErrorWithCause(code, message, cause)
	err.JobID = jobID
	return err
}

// NewFileRegistryError creates an error for a missing input/output file
// reference.
func NewFileRegistryError(jobID, fileName string) *DispatchError {
	err := NewDispatchError(ErrorCodeFileMissing, fmt.Sprintf("file %q is not registered", fileName))
	err.JobID = jobID
	err.Details = fileName
	return err
}
