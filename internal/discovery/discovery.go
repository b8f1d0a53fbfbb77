package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// File is one source file of an album and its size in bytes.
type File struct {
	Path string
	Size int64
}

// Options controls which files of a folder belong to the album.
type Options struct {
	// Extensions lists the lowercase extensions (with dot) to keep. Empty keeps everything.
	Extensions []string
	// IncludeHidden keeps dot-files and files inside dot-directories.
	IncludeHidden bool
}

// ErrNoFiles is returned when a source folder contains no eligible files.
var ErrNoFiles = errors.New("no eligible files found")

// Discover walks root and returns the eligible regular files sorted by path.
func Discover(root string, opts Options) ([]File, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %q is not a directory", root)
	}

	allowed := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	var files []File
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != root && !opts.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if len(allowed) > 0 {
			if _, ok := allowed[strings.ToLower(filepath.Ext(path))]; !ok {
				return nil
			}
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, File{Path: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk source: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFiles, root)
	}
	sortFiles(files)
	return files, nil
}

// FromPaths stats an explicit list of files and returns it sorted by path.
func FromPaths(paths []string) ([]File, error) {
	files := make([]File, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", path, err)
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", abs, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%q is not a regular file", abs)
		}
		files = append(files, File{Path: abs, Size: info.Size()})
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	sortFiles(files)
	return files, nil
}

// TotalSize returns the length of the concatenated byte stream.
func TotalSize(files []File) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

func sortFiles(files []File) {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
}

// InferAlbumTitle derives a display title from a source folder name, e.g.
// "the_band_-_first_light" becomes "The Band - First Light".
func InferAlbumTitle(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	if base == "." || base == string(filepath.Separator) {
		return "Unknown Album"
	}
	var cleaned strings.Builder
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '\'' || r == '&':
			cleaned.WriteRune(r)
			prevSpace = false
		case r == '-':
			cleaned.WriteString(" - ")
			prevSpace = true
		case unicode.IsSpace(r) || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.Join(strings.Fields(cleaned.String()), " ")
	if title == "" || title == "-" {
		return "Unknown Album"
	}
	return cases.Title(language.Und).String(title)
}
