package model

import "testing"

func TestDownloadStatus_Fraction(t *testing.T) {
	tests := []struct {
		name     string
		status   DownloadStatus
		expected float64
	}{
		{"done", DownloadStatus{Phase: DownloadDone}, 1},
		{"done ignores bytes", DownloadStatus{Phase: DownloadDone, BytesDone: 1, BytesTotal: 10}, 1},
		{"unknown total", DownloadStatus{Phase: DownloadInProgress, BytesDone: 500}, -1},
		{"queued", DownloadStatus{Phase: DownloadQueued}, -1},
		{"halfway", DownloadStatus{Phase: DownloadInProgress, BytesDone: 50, BytesTotal: 100}, 0.5},
		{"overshoot clamps", DownloadStatus{Phase: DownloadInProgress, BytesDone: 150, BytesTotal: 100}, 1},
	}

	for _, test := range tests {
		if got := test.status.Fraction(); got != test.expected {
			t.Errorf("%s: Fraction() = %v, expected %v", test.name, got, test.expected)
		}
	}
}

func TestMetadata_Helpers(t *testing.T) {
	m := &Metadata{Uploader: "Channel", UploadDate: "20240102"}
	if got := m.FormattedUploadDate(); got != "2024-01-02" {
		t.Errorf("FormattedUploadDate = %q", got)
	}
	if got := m.ArtistOrUploader(); got != "Channel" {
		t.Errorf("ArtistOrUploader = %q", got)
	}

	m.Artist = "Band"
	if got := m.ArtistOrUploader(); got != "Band" {
		t.Errorf("ArtistOrUploader = %q, expected artist to win", got)
	}

	if got := (&Metadata{}).AlbumName(); got != "YouTube" {
		t.Errorf("AlbumName fallback = %q", got)
	}
	if got := (&Metadata{Album: "LP", PlaylistTitle: "Mix"}).AlbumName(); got != "Mix" {
		t.Errorf("AlbumName = %q, expected playlist title to win", got)
	}

	if got := (&Metadata{UploadDate: "bad"}).FormattedUploadDate(); got != "bad" {
		t.Errorf("malformed date rewritten to %q", got)
	}
}
