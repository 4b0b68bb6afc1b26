package dispatch

// One specialised loop per (pattern, rank) pair. The pattern switch happens
// once in the For functions; nothing here branches on the pattern.

// MDRange tile edges. The innermost dimension gets a long tile so each tile
// walks contiguous memory.
const (
	mdTileInner = 64
	mdTileOuter = 2
)

func tiles(length, edge int) int {
	return (length + edge - 1) / edge
}

// Range: flatten to one index and decompose with div/mod.

func range1(s Space, ib Range, fn func(i int)) {
	s.Parallel(ib.Len(), func(lo, hi int) {
		for x := lo; x < hi; x++ {
			fn(ib.Lo + x)
		}
	})
}

func range2(s Space, jb, ib Range, fn func(j, i int)) {
	ni := ib.Len()
	s.Parallel(jb.Len()*ni, func(lo, hi int) {
		for x := lo; x < hi; x++ {
			fn(jb.Lo+x/ni, ib.Lo+x%ni)
		}
	})
}

func range3(s Space, kb, jb, ib Range, fn func(k, j, i int)) {
	nj, ni := jb.Len(), ib.Len()
	nji := nj * ni
	s.Parallel(kb.Len()*nji, func(lo, hi int) {
		for x := lo; x < hi; x++ {
			r := x % nji
			fn(kb.Lo+x/nji, jb.Lo+r/ni, ib.Lo+r%ni)
		}
	})
}

func range4(s Space, nb, kb, jb, ib Range, fn func(n, k, j, i int)) {
	nk, nj, ni := kb.Len(), jb.Len(), ib.Len()
	nji := nj * ni
	nkji := nk * nji
	s.Parallel(nb.Len()*nkji, func(lo, hi int) {
		for x := lo; x < hi; x++ {
			r := x % nkji
			q := r % nji
			fn(nb.Lo+x/nkji, kb.Lo+r/nji, jb.Lo+q/ni, ib.Lo+q%ni)
		}
	})
}

// MDRange: tile every dimension and run tiles in parallel.

func mdrange1(s Space, ib Range, fn func(i int)) {
	ti := tiles(ib.Len(), mdTileInner)
	s.Parallel(ti, func(lo, hi int) {
		for t := lo; t < hi; t++ {
			i0 := ib.Lo + t*mdTileInner
			i1 := min(i0+mdTileInner-1, ib.Hi)
			for i := i0; i <= i1; i++ {
				fn(i)
			}
		}
	})
}

func mdrange2(s Space, jb, ib Range, fn func(j, i int)) {
	tj, ti := tiles(jb.Len(), mdTileOuter), tiles(ib.Len(), mdTileInner)
	s.Parallel(tj*ti, func(lo, hi int) {
		for t := lo; t < hi; t++ {
			j0 := jb.Lo + (t/ti)*mdTileOuter
			i0 := ib.Lo + (t%ti)*mdTileInner
			j1 := min(j0+mdTileOuter-1, jb.Hi)
			i1 := min(i0+mdTileInner-1, ib.Hi)
			for j := j0; j <= j1; j++ {
				for i := i0; i <= i1; i++ {
					fn(j, i)
				}
			}
		}
	})
}

func mdrange3(s Space, kb, jb, ib Range, fn func(k, j, i int)) {
	tk := tiles(kb.Len(), mdTileOuter)
	tj := tiles(jb.Len(), mdTileOuter)
	ti := tiles(ib.Len(), mdTileInner)
	tji := tj * ti
	s.Parallel(tk*tji, func(lo, hi int) {
		for t := lo; t < hi; t++ {
			r := t % tji
			k0 := kb.Lo + (t/tji)*mdTileOuter
			j0 := jb.Lo + (r/ti)*mdTileOuter
			i0 := ib.Lo + (r%ti)*mdTileInner
			k1 := min(k0+mdTileOuter-1, kb.Hi)
			j1 := min(j0+mdTileOuter-1, jb.Hi)
			i1 := min(i0+mdTileInner-1, ib.Hi)
			for k := k0; k <= k1; k++ {
				for j := j0; j <= j1; j++ {
					for i := i0; i <= i1; i++ {
						fn(k, j, i)
					}
				}
			}
		}
	})
}

func mdrange4(s Space, nb, kb, jb, ib Range, fn func(n, k, j, i int)) {
	tn := tiles(nb.Len(), mdTileOuter)
	tk := tiles(kb.Len(), mdTileOuter)
	tj := tiles(jb.Len(), mdTileOuter)
	ti := tiles(ib.Len(), mdTileInner)
	tji := tj * ti
	tkji := tk * tji
	s.Parallel(tn*tkji, func(lo, hi int) {
		for t := lo; t < hi; t++ {
			r := t % tkji
			q := r % tji
			n0 := nb.Lo + (t/tkji)*mdTileOuter
			k0 := kb.Lo + (r/tji)*mdTileOuter
			j0 := jb.Lo + (q/ti)*mdTileOuter
			i0 := ib.Lo + (q%ti)*mdTileInner
			n1 := min(n0+mdTileOuter-1, nb.Hi)
			k1 := min(k0+mdTileOuter-1, kb.Hi)
			j1 := min(j0+mdTileOuter-1, jb.Hi)
			i1 := min(i0+mdTileInner-1, ib.Hi)
			for n := n0; n <= n1; n++ {
				for k := k0; k <= k1; k++ {
					for j := j0; j <= j1; j++ {
						for i := i0; i <= i1; i++ {
							fn(n, k, j, i)
						}
					}
				}
			}
		}
	})
}

// TPTTRTVR: league over the outer dimensions, team threads over j, vector
// lanes over i.

func tpttrtvr3(s Space, kb, jb, ib Range, fn func(k, j, i int)) {
	nj, ni := jb.Len(), ib.Len()
	s.Teams(kb.Len(), func(t Team) {
		k := kb.Lo + t.LeagueRank()
		t.ThreadRange(nj, func(y int) {
			j := jb.Lo + y
			t.VectorRange(ni, func(x int) {
				fn(k, j, ib.Lo+x)
			})
		})
	})
}

func tpttrtvr4(s Space, nb, kb, jb, ib Range, fn func(n, k, j, i int)) {
	nk, nj, ni := kb.Len(), jb.Len(), ib.Len()
	s.Teams(nb.Len()*nk, func(t Team) {
		r := t.LeagueRank()
		n, k := nb.Lo+r/nk, kb.Lo+r%nk
		t.ThreadRange(nj, func(y int) {
			j := jb.Lo + y
			t.VectorRange(ni, func(x int) {
				fn(n, k, j, ib.Lo+x)
			})
		})
	})
}

// TPTTR: league over the outer dimensions, team threads over the flattened
// (j, i) plane.

func tpttr3(s Space, kb, jb, ib Range, fn func(k, j, i int)) {
	nj, ni := jb.Len(), ib.Len()
	s.Teams(kb.Len(), func(t Team) {
		k := kb.Lo + t.LeagueRank()
		t.ThreadRange(nj*ni, func(x int) {
			fn(k, jb.Lo+x/ni, ib.Lo+x%ni)
		})
	})
}

func tpttr4(s Space, nb, kb, jb, ib Range, fn func(n, k, j, i int)) {
	nk, nj, ni := kb.Len(), jb.Len(), ib.Len()
	s.Teams(nb.Len()*nk, func(t Team) {
		r := t.LeagueRank()
		n, k := nb.Lo+r/nk, kb.Lo+r%nk
		t.ThreadRange(nj*ni, func(x int) {
			fn(n, k, jb.Lo+x/ni, ib.Lo+x%ni)
		})
	})
}

// TPTVR: league over the outer dimensions, j serial inside the team, vector
// lanes over i.

func tptvr3(s Space, kb, jb, ib Range, fn func(k, j, i int)) {
	ni := ib.Len()
	s.Teams(kb.Len(), func(t Team) {
		k := kb.Lo + t.LeagueRank()
		for j := jb.Lo; j <= jb.Hi; j++ {
			t.VectorRange(ni, func(x int) {
				fn(k, j, ib.Lo+x)
			})
		}
	})
}

func tptvr4(s Space, nb, kb, jb, ib Range, fn func(n, k, j, i int)) {
	nk, ni := kb.Len(), ib.Len()
	s.Teams(nb.Len()*nk, func(t Team) {
		r := t.LeagueRank()
		n, k := nb.Lo+r/nk, kb.Lo+r%nk
		for j := jb.Lo; j <= jb.Hi; j++ {
			t.VectorRange(ni, func(x int) {
				fn(n, k, j, ib.Lo+x)
			})
		}
	})
}

// SIMDFor: nested loops in the caller with a contiguous innermost loop.

func simdfor3(kb, jb, ib Range, fn func(k, j, i int)) {
	for k := kb.Lo; k <= kb.Hi; k++ {
		for j := jb.Lo; j <= jb.Hi; j++ {
			for i := ib.Lo; i <= ib.Hi; i++ {
				fn(k, j, i)
			}
		}
	}
}

func simdfor4(nb, kb, jb, ib Range, fn func(n, k, j, i int)) {
	for n := nb.Lo; n <= nb.Hi; n++ {
		for k := kb.Lo; k <= kb.Hi; k++ {
			for j := jb.Lo; j <= jb.Hi; j++ {
				for i := ib.Lo; i <= ib.Hi; i++ {
					fn(n, k, j, i)
				}
			}
		}
	}
}
