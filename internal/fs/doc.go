// Package fs abstracts the file operations used by the file-backed page
// managers so that tests can inject I/O faults.
//
//   - [LocalFS]: production implementation using the os package
//   - [FaultyFS]: wrapper that fails reads, writes or syncs on demand
//
// Production code uses fs.Default:
//
//	f, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
//
// Tests wrap it:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("tree.db", fs.Fault{FailAfterBytes: 4096})
package fs
