package model

// Metadata carries the subset of extractor output the pipeline needs for
// path prediction, tagging and history bookkeeping. Field names follow the
// yt-dlp info JSON so the struct can be decoded straight from
// --dump-single-json output.
type Metadata struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Uploader      string  `json:"uploader"`
	Artist        string  `json:"artist,omitempty"`
	Album         string  `json:"album,omitempty"`
	PlaylistTitle string  `json:"playlist_title,omitempty"`
	UploadDate    string  `json:"upload_date,omitempty"` // YYYYMMDD
	Duration      float64 `json:"duration,omitempty"`    // seconds
	Ext           string  `json:"ext,omitempty"`
	Thumbnail     string  `json:"thumbnail,omitempty"`
}

// FormattedUploadDate converts the yt-dlp YYYYMMDD date into YYYY-MM-DD for
// container metadata. Returns the raw value if it is not 8 digits.
func (m *Metadata) FormattedUploadDate() string {
	d := m.UploadDate
	if len(d) != 8 {
		return d
	}
	return d[:4] + "-" + d[4:6] + "-" + d[6:]
}

// ArtistOrUploader returns the artist tag if present, falling back to the
// uploader name.
func (m *Metadata) ArtistOrUploader() string {
	if m.Artist != "" {
		return m.Artist
	}
	return m.Uploader
}

// AlbumName returns the best album tag for the head unit's media browser:
// playlist title, explicit album, or a generic fallback.
func (m *Metadata) AlbumName() string {
	if m.PlaylistTitle != "" {
		return m.PlaylistTitle
	}
	if m.Album != "" {
		return m.Album
	}
	return "YouTube"
}
