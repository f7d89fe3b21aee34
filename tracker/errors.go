package tracker

import "errors"

// Sentinel error kinds per spec.md §7. LIMIT_CLAMP is deliberately not
// an error (targets are silently clamped) and has no sentinel here.
var (
	// ErrHwUnavailable is returned by Start when a startup hardware
	// probe (bus open / device ping) fails. Fatal: the core stays Idle.
	ErrHwUnavailable = errors.New("tracker: hardware unavailable at startup")

	// ErrScanUnderfilled marks an angular scan that collected fewer
	// than MinSamples entries; the scan aborts to Manual.
	ErrScanUnderfilled = errors.New("tracker: scan underfilled")

	// ErrVtxSetFailed marks a VtxDriver failure during VtxScan or a
	// foreground vtx_set command.
	ErrVtxSetFailed = errors.New("tracker: vtx set failed")

	// ErrVtxScanInProgress is returned by SubmitCommand for a
	// vtx_scan_start command while a scan is already running
	// (invariant 10).
	ErrVtxScanInProgress = errors.New("tracker: vtx scan already in progress")

	// ErrInvalidCommand is returned by SubmitCommand (wrapping the
	// bus's reason) for any command rejected without a state change.
	ErrInvalidCommand = errors.New("tracker: invalid command")
)
