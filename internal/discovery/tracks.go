package discovery

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var audioExtensions = map[string]struct{}{
	".flac": {}, ".wav": {}, ".mp3": {}, ".m4a": {}, ".ogg": {},
	".opus": {}, ".ape": {}, ".wv": {}, ".aiff": {},
}

// IsAudio reports whether path has a playable audio extension.
func IsAudio(path string) bool {
	_, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// TrackSource binds a track to the source file holding its bytes. Tracks of
// a disc image share one Path.
type TrackSource struct {
	Number int
	Title  string
	Path   string
}

// CueTrack is one TRACK entry of a cue sheet.
type CueTrack struct {
	Number int
	Title  string
	File   string
}

// ParseCue reads the FILE, TRACK and TITLE commands of a cue sheet. File
// names are returned as written; INDEX timings are ignored because
// completion is tracked per file.
func ParseCue(r io.Reader) ([]CueTrack, error) {
	var (
		tracks  []CueTrack
		current string
	)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		cmd, rest, _ := strings.Cut(line, " ")
		switch strings.ToUpper(cmd) {
		case "FILE":
			name, ok := quoted(rest)
			if !ok {
				return nil, fmt.Errorf("cue line %d: malformed FILE", lineNo)
			}
			current = name
		case "TRACK":
			if current == "" {
				return nil, fmt.Errorf("cue line %d: TRACK before FILE", lineNo)
			}
			numText, _, _ := strings.Cut(strings.TrimSpace(rest), " ")
			num, err := strconv.Atoi(numText)
			if err != nil || num <= 0 {
				return nil, fmt.Errorf("cue line %d: bad track number %q", lineNo, numText)
			}
			tracks = append(tracks, CueTrack{Number: num, File: current})
		case "TITLE":
			if len(tracks) == 0 {
				continue
			}
			if title, ok := quoted(rest); ok {
				tracks[len(tracks)-1].Title = title
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cue: %w", err)
	}
	return tracks, nil
}

// quoted returns the first double-quoted string of s, or the first field
// when s is unquoted.
func quoted(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `"`) {
		end := strings.Index(s[1:], `"`)
		if end < 0 {
			return "", false
		}
		return s[1 : end+1], true
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

// Tracks derives the track list of an album. Audio files referenced by a cue
// sheet in the list contribute one track per cue TRACK; every other audio
// file is one track. Numbers run in stream order.
func Tracks(files []File) ([]TrackSource, error) {
	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		present[f.Path] = struct{}{}
	}

	byFile := make(map[string][]CueTrack)
	for _, f := range files {
		if !strings.EqualFold(filepath.Ext(f.Path), ".cue") {
			continue
		}
		fh, err := os.Open(f.Path)
		if err != nil {
			return nil, fmt.Errorf("open cue: %w", err)
		}
		entries, err := ParseCue(fh)
		_ = fh.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Path, err)
		}
		for _, e := range entries {
			target := filepath.Join(filepath.Dir(f.Path), e.File)
			if _, ok := present[target]; ok {
				byFile[target] = append(byFile[target], e)
			}
		}
	}

	var out []TrackSource
	for _, f := range files {
		if !IsAudio(f.Path) {
			continue
		}
		if entries, ok := byFile[f.Path]; ok {
			for _, e := range entries {
				out = append(out, TrackSource{Number: len(out) + 1, Title: e.Title, Path: f.Path})
			}
			continue
		}
		title := strings.TrimSuffix(filepath.Base(f.Path), filepath.Ext(f.Path))
		out = append(out, TrackSource{Number: len(out) + 1, Title: title, Path: f.Path})
	}
	return out, nil
}
