// Package discovery turns an album source (a folder, a CD rip directory, or a
// finished torrent download) into the ordered file list the chunk pipeline
// consumes.
//
// Files are sorted by path so the concatenated byte stream, and therefore every
// chunk boundary, is reproducible across runs. Existence and size are checked
// once here; downstream stages treat the list as immutable.
package discovery
