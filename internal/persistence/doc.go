// Package persistence saves and restores store snapshots as a JSON file.
//
// The on-disk format is a single object mapping id to an array of
// vectorstore.Dimension floats, pretty-printed:
//
//	{
//	  "doc-1": [0.38, 0.39, 0.42, 0.42, 0.43, 0, 0, 0]
//	}
//
// Save writes to a temporary file in the target directory, fsyncs it and
// renames it over the target, so readers and crashes only ever observe a
// complete snapshot. When compression is enabled the same document is
// gzip-framed; Load detects the framing from the file header and accepts
// either form.
//
// Load is all-or-nothing: a missing file reports OutcomeNoFile, any read,
// parse or dimension failure reports OutcomeLoadError, and only a fully
// valid file replaces the store contents.
package persistence
