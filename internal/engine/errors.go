/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

import "errors"

var (
	// ErrEngineClosed indicates the engine has been torn down.
	ErrEngineClosed = errors.New("engine closed")

	// ErrNoTrack indicates a command that needs a loaded track found none.
	ErrNoTrack = errors.New("no track loaded")

	// ErrInvalidCrossfadeDuration rejects crossfade durations outside
	// [1,20] seconds. The previous configuration is left intact.
	ErrInvalidCrossfadeDuration = errors.New("crossfade duration must be between 1 and 20 seconds")

	// ErrStandbyBusy rejects a preload while a crossfade is consuming
	// the standby slot.
	ErrStandbyBusy = errors.New("standby slot busy in crossfade")

	// ErrLoadRejected indicates the backend refused a load request
	// outright (as opposed to failing it asynchronously).
	ErrLoadRejected = errors.New("backend rejected load request")
)
