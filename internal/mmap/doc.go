// Package mmap maps snapshot and page files read-only into memory.
//
// A Mapping is safe for concurrent reads. Slices returned by Bytes must not be
// used after Close.
package mmap
