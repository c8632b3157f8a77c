package model

// Stage represents the lifecycle phase of a pipeline item
type Stage string

const (
	// StagePreCheck means the item is being checked against history and disk
	StagePreCheck Stage = "PreCheck"

	// StageDownloading means the source download is in progress
	StageDownloading Stage = "Downloading"

	// StageConverting means the transcode is in progress
	StageConverting Stage = "Converting"

	// StageFinalizing means size remediation is running on the output
	StageFinalizing Stage = "Finalizing"

	// StageTransferring means finalized files are being copied to a target volume
	StageTransferring Stage = "Transferring"

	// StageComplete means the item finished successfully
	StageComplete Stage = "Complete"

	// StageFailed means the item aborted with an error
	StageFailed Stage = "Failed"
)

// String returns the string representation of the stage
func (s Stage) String() string {
	return string(s)
}

// IsTerminal returns true if the item will not advance past this stage
func (s Stage) IsTerminal() bool {
	return s == StageComplete || s == StageFailed
}

// next maps each stage to its legal successor. Items never skip a stage
// except through the documented pre-check short-circuits.
var next = map[Stage]Stage{
	StagePreCheck:     StageDownloading,
	StageDownloading:  StageConverting,
	StageConverting:   StageFinalizing,
	StageFinalizing:   StageTransferring,
	StageTransferring: StageComplete,
}

// CanAdvanceTo reports whether to is a legal transition from s. Any stage
// may transition to StageFailed, and the pre-check may short-circuit
// directly to StageComplete.
func (s Stage) CanAdvanceTo(to Stage) bool {
	if to == StageFailed {
		return !s.IsTerminal()
	}
	if s == StagePreCheck && to == StageComplete {
		return true
	}
	// Transfer is optional; finalized items may complete directly.
	if s == StageFinalizing && to == StageComplete {
		return true
	}
	return next[s] == to
}
