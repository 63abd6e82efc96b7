package panel

import "errors"

var (
	// ErrInvalidCoordinate is returned by SetPixel for cells outside the 8x8 grid.
	ErrInvalidCoordinate = errors.New("invalid pixel coordinate")

	// ErrInvalidColorValue is returned for colors with NaN or infinite components.
	ErrInvalidColorValue = errors.New("invalid color value")

	// ErrSinkUnavailable wraps any failure reported by the pixel sink.
	// Controller state is kept even when the sink write fails; Refresh re-pushes it.
	ErrSinkUnavailable = errors.New("pixel sink unavailable")

	// ErrPoweredOff is returned by operations that need the panel to be on.
	ErrPoweredOff = errors.New("panel is powered off")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("panel controller closed")
)
