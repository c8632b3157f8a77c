package download

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/addoodi/yt2audi/internal/config"
	"github.com/addoodi/yt2audi/internal/model"
)

func testProfile() *config.Profile {
	p := &config.Profile{}
	p.Video.MaxHeight = 540
	p.Video.MaxFPS = 25
	p.Video.Codec = "h264"
	p.Audio.Codec = "aac"
	p.Audio.BitrateKbps = 128
	p.Output.Container = "mp4"
	p.Download.FormatPreference = "auto"
	return p
}

func TestResolve(t *testing.T) {
	s := NewService(testProfile(), nil)
	s.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		return []byte(`{"id":"abc123","title":"A Video","uploader":"Someone","duration":212.5}`), nil
	}

	meta, err := s.Resolve(context.Background(), "https://youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if meta.ID != "abc123" || meta.Title != "A Video" || meta.Duration != 212.5 {
		t.Errorf("unexpected metadata: %+v", meta)
	}
}

func TestResolve_ToolFailure(t *testing.T) {
	s := NewService(testProfile(), nil)
	s.run = func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("yt-dlp: video unavailable")
	}

	if _, err := s.Resolve(context.Background(), "url"); !errors.Is(err, ErrResolution) {
		t.Errorf("err = %v, expected ErrResolution", err)
	}
}

func TestResolve_MissingID(t *testing.T) {
	s := NewService(testProfile(), nil)
	s.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"title":"no id"}`), nil
	}

	if _, err := s.Resolve(context.Background(), "url"); !errors.Is(err, ErrResolution) {
		t.Errorf("err = %v, expected ErrResolution", err)
	}
}

func TestResolve_CacheHitSkipsTool(t *testing.T) {
	cache := &fakeCache{entries: map[string]*model.Metadata{
		"url": {ID: "cached"},
	}}
	s := NewService(testProfile(), cache)
	s.run = func(context.Context, string, ...string) ([]byte, error) {
		t.Fatal("tool ran despite cache hit")
		return nil, nil
	}

	meta, err := s.Resolve(context.Background(), "url")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if meta.ID != "cached" {
		t.Errorf("meta.ID = %s, expected cache hit", meta.ID)
	}
}

type fakeCache struct {
	entries map[string]*model.Metadata
	puts    int
}

func (c *fakeCache) GetMetadata(url string) (*model.Metadata, bool) {
	m, ok := c.entries[url]
	return m, ok
}

func (c *fakeCache) PutMetadata(url string, meta *model.Metadata) error {
	c.entries[url] = meta
	c.puts++
	return nil
}

func TestResolvePlaylist(t *testing.T) {
	s := NewService(testProfile(), nil)
	s.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"id":"aaa"}
{"url":"https://example.com/watch?v=bbb"}

{"id":"ccc"}
`), nil
	}

	urls, err := s.ResolvePlaylist(context.Background(), "playlist-url")
	if err != nil {
		t.Fatalf("ResolvePlaylist failed: %v", err)
	}
	expected := []string{
		"https://www.youtube.com/watch?v=aaa",
		"https://example.com/watch?v=bbb",
		"https://www.youtube.com/watch?v=ccc",
	}
	if !reflect.DeepEqual(urls, expected) {
		t.Errorf("urls = %v, expected %v", urls, expected)
	}
}

func TestResolvePlaylist_Empty(t *testing.T) {
	s := NewService(testProfile(), nil)
	s.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("\n"), nil
	}

	if _, err := s.ResolvePlaylist(context.Background(), "playlist-url"); !errors.Is(err, ErrResolution) {
		t.Errorf("err = %v, expected ErrResolution for empty playlist", err)
	}
}

func TestApplyPlaylistWindow(t *testing.T) {
	urls := []string{"a", "b", "c", "d", "e"}

	tests := []struct {
		name     string
		download config.Download
		expected []string
	}{
		{"all", config.Download{}, []string{"a", "b", "c", "d", "e"}},
		{"start", config.Download{PlaylistStart: 3}, []string{"c", "d", "e"}},
		{"start and end", config.Download{PlaylistStart: 2, PlaylistEnd: 4}, []string{"b", "c", "d"}},
		{"end beyond length", config.Download{PlaylistEnd: 99}, []string{"a", "b", "c", "d", "e"}},
		{"start beyond length", config.Download{PlaylistStart: 9}, nil},
		{"reverse", config.Download{PlaylistReverse: true}, []string{"e", "d", "c", "b", "a"}},
		{"windowed reverse", config.Download{PlaylistStart: 2, PlaylistEnd: 4, PlaylistReverse: true}, []string{"d", "c", "b"}},
	}

	for _, test := range tests {
		got := applyPlaylistWindow(urls, test.download)
		if !reflect.DeepEqual(got, test.expected) {
			t.Errorf("%s: applyPlaylistWindow = %v, expected %v", test.name, got, test.expected)
		}
	}
}

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		ok       bool
		expected model.DownloadStatus
	}{
		{
			"exact total",
			"PROGRESS 1024 4096 4100",
			true,
			model.DownloadStatus{Phase: model.DownloadInProgress, BytesDone: 1024, BytesTotal: 4096},
		},
		{
			"estimate fallback",
			"PROGRESS 1024 NA 4100",
			true,
			model.DownloadStatus{Phase: model.DownloadInProgress, BytesDone: 1024, BytesTotal: 4100},
		},
		{
			"nothing known",
			"PROGRESS 1024 NA NA",
			true,
			model.DownloadStatus{Phase: model.DownloadInProgress, BytesDone: 1024},
		},
		{
			"float counts",
			"PROGRESS 1024.0 4096.5 NA",
			true,
			model.DownloadStatus{Phase: model.DownloadInProgress, BytesDone: 1024, BytesTotal: 4096},
		},
		{"not a progress line", "/tmp/yt2audi/Video_abc.mp4", false, model.DownloadStatus{}},
		{"truncated", "PROGRESS 1024", false, model.DownloadStatus{}},
	}

	for _, test := range tests {
		got, ok := parseProgressLine(test.line)
		if ok != test.ok {
			t.Errorf("%s: ok = %v, expected %v", test.name, ok, test.ok)
			continue
		}
		if ok && got != test.expected {
			t.Errorf("%s: status = %+v, expected %+v", test.name, got, test.expected)
		}
	}
}

func TestParseDestLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		ok       bool
		expected string
	}{
		{"marked path", "DEST /tmp/yt2audi/Video_abc.mp4", true, "/tmp/yt2audi/Video_abc.mp4"},
		{"path with spaces", "DEST /tmp/yt2audi/My Video_abc.mp4", true, "/tmp/yt2audi/My Video_abc.mp4"},
		// yt-dlp mixes informational lines into stdout; none may be
		// mistaken for the destination
		{"chatter", "[Merger] Merging formats into /tmp/out.mp4", false, ""},
		{"deleting line", "Deleting original file /tmp/part.f137.mp4", false, ""},
		{"bare path", "/tmp/yt2audi/Video_abc.mp4", false, ""},
		{"empty payload", "DEST ", false, ""},
		{"progress line", "PROGRESS 1 2 3", false, ""},
	}

	for _, test := range tests {
		got, ok := parseDestLine(test.line)
		if ok != test.ok {
			t.Errorf("%s: ok = %v, expected %v", test.name, ok, test.ok)
			continue
		}
		if got != test.expected {
			t.Errorf("%s: path = %q, expected %q", test.name, got, test.expected)
		}
	}
}
