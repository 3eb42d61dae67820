// Package pagestore provides fixed-size pages and the Manager contract used by
// every metric tree in gomam.
//
// A Manager hands out Pages, persists them and recycles their instances.
// Page id 0 is reserved for the tree header and is never returned by
// AllocatePage.
//
// # Backends
//
//	m := pagestore.NewMemoryManager(pagestore.WithPageSize(4096))
//	d, _ := pagestore.OpenDiskManager("tree.db", pagestore.WithPageSize(8192))
//	s, _ := pagestore.OpenMultipleManager("tree.db", 1024)   // tree.db.0, tree.db.1, ...
//	c, _ := pagestore.NewCachedManager(d, pagestore.CacheConfig{MaxPages: 4096})
//
// # Ownership
//
// A Page returned by HeaderPage, ReadPage or AllocatePage belongs to the caller
// until it is handed back with ReleasePage or DisposePage. Writing a page does
// not release it. Callers release pages on every exit path:
//
//	p, err := m.ReadPage(id)
//	if err != nil {
//		return err
//	}
//	defer m.ReleasePage(p)
//
// Managers are not safe for concurrent use.
package pagestore
