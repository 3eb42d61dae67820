package mm

import (
	"github.com/hupe1980/gomam/internal/node"
	"github.com/hupe1980/gomam/pagestore"
)

// balance redistributes the pivots of target, the objects of its children
// and extra over target and its existing child pages. It requires every
// child of target to be a leaf and reports false when no pivot pair yields a
// distribution that fits.
func (t *Tree[T]) balance(target pagestore.PageID, extra item[T]) (bool, error) {
	s, err := t.read(target)
	if err != nil {
		return false, err
	}
	items := append([]item[T](nil), s.pivots...)
	var pages []pagestore.PageID
	for _, child := range s.children {
		if child == 0 {
			continue
		}
		cs, err := t.read(child)
		if err != nil {
			return false, err
		}
		if !cs.leaf {
			return false, nil
		}
		pages = append(pages, child)
		items = append(items, cs.pivots...)
	}
	if len(pages) == 0 {
		return false, nil
	}
	items = append(items, extra)

	n := len(items)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := range n {
		for j := i + 1; j < n; j++ {
			dist[i][j] = t.Distance(items[i].obj, items[j].obj)
			dist[j][i] = dist[i][j]
		}
	}

	pageSize := t.Manager().PageSize()
	fits := func(idx ...int) bool {
		if len(idx) > node.MMLayout.MaxEntries {
			return false
		}
		used := node.MMLayout.HeaderSize
		for _, i := range idx {
			used += node.MMLayout.EntrySize + len(items[i].enc)
		}
		return used <= pageSize
	}

	for a := range n {
		for b := a + 1; b < n; b++ {
			if !fits(a, b) {
				continue
			}
			r := dist[a][b]
			var groups [node.NumRegions][]int
			for k := range n {
				if k == a || k == b {
					continue
				}
				reg := regionOf(2, r, dist[a][k], dist[b][k])
				groups[reg] = append(groups[reg], k)
			}
			used := 0
			ok := true
			for _, g := range groups {
				if len(g) == 0 {
					continue
				}
				used++
				ok = ok && fits(g...)
			}
			if !ok || used > len(pages) {
				continue
			}
			return true, t.redistribute(target, pages, items, dist, a, b, groups)
		}
	}
	return false, nil
}

// redistribute rewrites target with pivots a and b and refills its child
// pages from groups, disposing the pages left over. At least one group is
// always non-empty, so target keeps a leaf child and the height is unchanged.
func (t *Tree[T]) redistribute(target pagestore.PageID, pages []pagestore.PageID, items []item[T], dist [][]float64, a, b int, groups [node.NumRegions][]int) error {
	var children [node.NumRegions]pagestore.PageID
	next := 0
	for reg, g := range groups {
		if len(g) == 0 {
			continue
		}
		id := pages[next]
		next++
		children[reg] = id

		leaf := make([]item[T], len(g))
		for i, k := range g {
			leaf[i] = items[k]
		}
		r := 0.0
		if len(g) == 2 {
			r = dist[g[0]][g[1]]
		}
		if err := t.UpdatePage(id, func(p *pagestore.Page) error { return t.fill(p, leaf, r) }); err != nil {
			return err
		}
	}

	err := t.UpdatePage(target, func(p *pagestore.Page) error {
		if err := t.fill(p, []item[T]{items[a], items[b]}, dist[a][b]); err != nil {
			return err
		}
		n, err := node.OpenMM(p.Data())
		if err != nil {
			return err
		}
		for reg, id := range children {
			if err := n.SetChild(reg, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range pages[next:] {
		if err := t.DisposePage(id); err != nil {
			return err
		}
		t.Header().NodeCount--
	}
	t.Logger().Debug("balanced", "node", target, "freed", len(pages)-next)
	return nil
}
