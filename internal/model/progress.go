package model

// ProgressFunc receives per-item progress events. Percent is on the unified
// composite scale: downloads occupy 0-50, conversion 50-100. Stage failures
// are reported through the same channel with an error-tagged stage label
// (for example "Download Failed: ...") so UIs can render them inline.
type ProgressFunc func(url string, percent float64, stage string)

// DownloadPhase tags a DownloadStatus.
type DownloadPhase int

const (
	// DownloadQueued means no bytes have been requested yet
	DownloadQueued DownloadPhase = iota

	// DownloadInProgress means bytes are flowing
	DownloadInProgress

	// DownloadDone means the fetch finished
	DownloadDone
)

// DownloadStatus is the typed replacement for the loosely keyed status dicts
// native download tools emit. BytesTotal may be an estimate; zero means the
// total is unknown and the fraction is indeterminate.
type DownloadStatus struct {
	Phase      DownloadPhase
	BytesDone  int64
	BytesTotal int64
}

// Fraction returns completion in [0,1], or -1 when the total is unknown.
func (d DownloadStatus) Fraction() float64 {
	if d.Phase == DownloadDone {
		return 1
	}
	if d.BytesTotal <= 0 {
		return -1
	}
	f := float64(d.BytesDone) / float64(d.BytesTotal)
	if f > 1 {
		f = 1
	}
	return f
}

// DownloadStatusFunc receives incremental download status updates.
type DownloadStatusFunc func(DownloadStatus)

// EncodeProgressFunc receives fractional transcode completion in [0,1].
type EncodeProgressFunc func(fraction float64)
