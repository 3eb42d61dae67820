// Package node lays out tree nodes inside page bytes.
//
// Every node kind shares one slotted format: a fixed header, then an
// offset table growing forward, with object blobs growing backward from the
// end of the page. For a node with n entries,
//
//	free = len(page) - header - n*entry - sum(object sizes)
//
// and the offsets strictly decrease with the entry index. Object i occupies
// [offset(i), offset(i-1)), with offset(-1) taken as the page length.
//
// Node views alias the page bytes and must not outlive the page.
package node
