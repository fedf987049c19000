// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDispatchError(t *testing.T) {
	err := NewDispatchError(ErrorCodeResourceInsufficient, "not enough cores")
	require.NotNil(t, err)
	assert.Equal(t, ErrorCodeResourceInsufficient, err.Code)
	assert.Equal(t, CategoryResource, err.Category)
	assert.Equal(t, RecoveryLocal, err.Recovery)
	assert.True(t, err.Retryable)
}

func TestNewDispatchErrorWithCause(t *testing.T) {
	cause := errors.New("boom")
	err := NewDispatchErrorWithCause(ErrorCodeConnectFailed, "lost connection", cause)
	require.NotNil(t, err)
	assert.Same(t, cause, err.Unwrap())
	assert.Equal(t, RecoveryFatalRetryOnce, err.Recovery)
}

func TestDispatchError_Error(t *testing.T) {
	err := NewDispatchError(ErrorCodeFileMissing, "missing input")
	assert.Equal(t, "[FILE_MISSING] missing input", err.Error())

	err.Details = "input.dat"
	assert.Equal(t, "[FILE_MISSING] missing input: input.dat", err.Error())
}

func TestDispatchError_Is(t *testing.T) {
	a := NewDispatchError(ErrorCodeOutOfStorage, "no space")
	b := NewDispatchError(ErrorCodeOutOfStorage, "different message")
	c := NewDispatchError(ErrorCodeFileMissing, "no space")

	assert.True(t, a.Is(b))
	assert.False(t, a.Is(c))
}

func TestDispatchError_IsTemporary(t *testing.T) {
	assert.True(t, NewDispatchError(ErrorCodeConnectFailed, "x").IsTemporary())
	assert.True(t, NewDispatchError(ErrorCodeResourceInsufficient, "x").IsTemporary())
	assert.True(t, NewDispatchError(ErrorCodePolicyPending, "x").IsTemporary())
	assert.False(t, NewDispatchError(ErrorCodeFileMissing, "x").IsTemporary())
}

func TestNewResourceError(t *testing.T) {
	err := NewResourceError(ErrorCodeResourceInsufficient, "cores exhausted", "site-a", "host-1", "disk-0", nil)
	require.NotNil(t, err)
	assert.Equal(t, "site-a", err.SiteID)
	assert.Equal(t, "host-1", err.HostID)
	assert.Equal(t, "disk-0", err.DiskID)
}

func TestNewProtocolError(t *testing.T) {
	err := NewProtocolError("unexpected tag", "SBMT", nil)
	require.NotNil(t, err)
	assert.Equal(t, ErrorCodeProtocolError, err.Code)
	assert.Equal(t, "SBMT", err.Frame)
	assert.Equal(t, RecoveryLocal, err.Recovery)
}

func TestNewTopologyError(t *testing.T) {
	err := NewTopologyError("site not found", "site-z")
	require.NotNil(t, err)
	assert.Equal(t, ErrorCodeTopologyMissing, err.Code)
	assert.Equal(t, "site-z", err.Reference)
}

func TestGetErrorCategory(t *testing.T) {
	cases := map[ErrorCode]ErrorCategory{
		ErrorCodeResourceInsufficient: CategoryResource,
		ErrorCodePolicyPending:        CategoryPolicy,
		ErrorCodePolicyFailed:         CategoryPolicy,
		ErrorCodeProtocolError:        CategoryProtocol,
		ErrorCodeTopologyMissing:      CategoryTopology,
		ErrorCodeFileMissing:          CategoryTopology,
		ErrorCodeOutOfStorage:         CategoryStorage,
		ErrorCodeConnectFailed:        CategoryNetwork,
		ErrorCodeInvalidConfiguration: CategoryConfig,
		ErrorCodeUnknown:              CategoryUnknown,
	}
	for code, want := range cases {
		assert.Equal(t, want, getErrorCategory(code), "code=%s", code)
	}
}

func TestGetRecovery(t *testing.T) {
	assert.Equal(t, RecoveryLocal, getRecovery(ErrorCodeResourceInsufficient))
	assert.Equal(t, RecoveryFatalRetryOnce, getRecovery(ErrorCodeFileMissing))
	assert.Equal(t, RecoveryFatalRetryOnce, getRecovery(ErrorCodeConnectFailed))
}
