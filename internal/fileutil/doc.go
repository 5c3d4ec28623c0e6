// Package fileutil scans directory trees for files by extension, name
// pattern and exact name.
//
// It is used to find Python test modules next to modified sources and to
// collect numbered task files from a plan directory:
//
//	result, err := fileutil.ScanDirectory(root, fileutil.ScanOptions{
//	    Extensions:  []string{".py"},
//	    Recursive:   true,
//	    ExcludeDirs: fileutil.PythonCacheDirs,
//	    Relative:    true,
//	})
//
// Hidden directories are always skipped. Output is sorted, and unreadable
// subdirectories are collected in ScanResult.Errors instead of aborting the
// walk.
package fileutil
