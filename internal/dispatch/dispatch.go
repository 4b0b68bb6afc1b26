package dispatch

// For1 visits every i in ib exactly once using pattern p on space s.
func For1(label string, p Pattern, s Space, ib Range, fn func(i int)) {
	mustCheck(label, p, 1, s)
	if ib.Empty() {
		return
	}
	observeLaunch(s, p, ib.Len())
	switch p {
	case PatternRange:
		range1(s, ib, fn)
	case PatternMDRange:
		mdrange1(s, ib, fn)
	}
}

// For2 visits every (j, i) in jb × ib exactly once using pattern p on space s.
func For2(label string, p Pattern, s Space, jb, ib Range, fn func(j, i int)) {
	mustCheck(label, p, 2, s)
	if jb.Empty() || ib.Empty() {
		return
	}
	observeLaunch(s, p, jb.Len()*ib.Len())
	switch p {
	case PatternRange:
		range2(s, jb, ib, fn)
	case PatternMDRange:
		mdrange2(s, jb, ib, fn)
	}
}

// For3 visits every (k, j, i) in kb × jb × ib exactly once using pattern p on
// space s.
func For3(label string, p Pattern, s Space, kb, jb, ib Range, fn func(k, j, i int)) {
	mustCheck(label, p, 3, s)
	if kb.Empty() || jb.Empty() || ib.Empty() {
		return
	}
	observeLaunch(s, p, kb.Len()*jb.Len()*ib.Len())
	switch p {
	case PatternRange:
		range3(s, kb, jb, ib, fn)
	case PatternMDRange:
		mdrange3(s, kb, jb, ib, fn)
	case PatternTPTTRTVR:
		tpttrtvr3(s, kb, jb, ib, fn)
	case PatternTPTTR:
		tpttr3(s, kb, jb, ib, fn)
	case PatternTPTVR:
		tptvr3(s, kb, jb, ib, fn)
	case PatternSIMDFor:
		simdfor3(kb, jb, ib, fn)
	}
}

// For4 visits every (n, k, j, i) in nb × kb × jb × ib exactly once using
// pattern p on space s.
func For4(label string, p Pattern, s Space, nb, kb, jb, ib Range, fn func(n, k, j, i int)) {
	mustCheck(label, p, 4, s)
	if nb.Empty() || kb.Empty() || jb.Empty() || ib.Empty() {
		return
	}
	observeLaunch(s, p, nb.Len()*kb.Len()*jb.Len()*ib.Len())
	switch p {
	case PatternRange:
		range4(s, nb, kb, jb, ib, fn)
	case PatternMDRange:
		mdrange4(s, nb, kb, jb, ib, fn)
	case PatternTPTTRTVR:
		tpttrtvr4(s, nb, kb, jb, ib, fn)
	case PatternTPTTR:
		tpttr4(s, nb, kb, jb, ib, fn)
	case PatternTPTVR:
		tptvr4(s, nb, kb, jb, ib, fn)
	case PatternSIMDFor:
		simdfor4(nb, kb, jb, ib, fn)
	}
}
