package engine

// match scans buf for the earliest occurrence of any pattern. Ties at the
// same position go to the lowest pattern index. consumed is the number of
// bytes of buf up to the end of the match.
func match(buf string, patterns []Pattern) (m Match, consumed int, ok bool) {
	best := -1
	bestStart, bestEnd := 0, 0
	for i, p := range patterns {
		start, end, found := p.find(buf)
		if !found {
			continue
		}
		if best < 0 || start < bestStart {
			best, bestStart, bestEnd = i, start, end
		}
	}
	if best < 0 {
		return Match{}, 0, false
	}
	return Match{
		Index:   best,
		Before:  buf[:bestStart],
		Matched: buf[bestStart:bestEnd],
	}, bestEnd, true
}

// Scan runs the same matching rule over text, for callers that already hold
// the full output.
func Scan(text string, patterns []Pattern) (Match, bool) {
	m, _, ok := match(text, patterns)
	return m, ok
}
