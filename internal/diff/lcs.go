package diff

// lcs returns a longest common subsequence of a and b.
//
// dp[i][j] holds the LCS length of a[:i] and b[:j]. The backtrack starts at
// dp[m][n] and, when both neighbours tie, steps in the old direction
// (i-1). That tie-break decides which of several equal-length subsequences is
// returned and must stay fixed for reproducible output.
func lcs(a, b []string) []string {
	m, n := len(a), len(b)
	if m == 0 || n == 0 {
		return nil
	}

	w := n + 1
	dp := make([]int32, (m+1)*w)
	for i := 1; i <= m; i++ {
		row, prev := i*w, (i-1)*w
		for j := 1; j <= n; j++ {
			switch {
			case a[i-1] == b[j-1]:
				dp[row+j] = dp[prev+j-1] + 1
			case dp[prev+j] >= dp[row+j-1]:
				dp[row+j] = dp[prev+j]
			default:
				dp[row+j] = dp[row+j-1]
			}
		}
	}

	out := make([]string, dp[m*w+n])
	k := len(out)
	for i, j := m, n; i > 0 && j > 0; {
		switch {
		case a[i-1] == b[j-1]:
			k--
			out[k] = a[i-1]
			i--
			j--
		case dp[(i-1)*w+j] >= dp[i*w+j-1]:
			i--
		default:
			j--
		}
	}
	return out
}

// alignHeuristic walks old, new and the LCS forward with pointers i, j, k.
//
// Rules, applied in order at every step:
//  1. One side exhausted: the other side's remainder is Added or Removed.
//  2. Both tokens equal the current LCS token: Same, advance i, j and k.
//  3. Both tokens equal each other (a common token that is not the LCS
//     anchor): Same, advance i and j.
//  4. Old token is the anchor, new is not: the new token is an insertion.
//     New token is the anchor, old is not: the old token is a deletion.
//  5. Lookahead: find the old token in the rest of new and the new token in
//     the rest of old. Neither found: Removed+Added, advance both. Otherwise
//     the nearer reappearance wins: old token nearer means the new token is an
//     insertion, new token nearer (or equally near) means the old token is a
//     deletion.
func alignHeuristic(a, b []string) Result {
	common := lcs(a, b)
	res := Result{
		Old: make([]Entry, 0, len(a)),
		New: make([]Entry, 0, len(b)),
	}

	same := func(tok string) {
		res.Old = append(res.Old, Entry{Text: tok, Kind: Same})
		res.New = append(res.New, Entry{Text: tok, Kind: Same})
	}
	removed := func(tok string) {
		res.Old = append(res.Old, Entry{Text: tok, Kind: Removed})
	}
	added := func(tok string) {
		res.New = append(res.New, Entry{Text: tok, Kind: Added})
	}

	i, j, k := 0, 0, 0
	for i < len(a) || j < len(b) {
		if i >= len(a) {
			added(b[j])
			j++
			continue
		}
		if j >= len(b) {
			removed(a[i])
			i++
			continue
		}

		oldTok, newTok := a[i], b[j]
		anchored := k < len(common)
		switch {
		case anchored && oldTok == common[k] && newTok == common[k]:
			same(oldTok)
			i, j, k = i+1, j+1, k+1
		case oldTok == newTok:
			same(oldTok)
			i, j = i+1, j+1
		case anchored && oldTok == common[k]:
			added(newTok)
			j++
		case anchored && newTok == common[k]:
			removed(oldTok)
			i++
		default:
			oldAhead := offset(b, j+1, oldTok)
			newAhead := offset(a, i+1, newTok)
			switch {
			case oldAhead < 0 && newAhead < 0:
				removed(oldTok)
				added(newTok)
				i, j = i+1, j+1
			case newAhead < 0 || (oldAhead >= 0 && oldAhead < newAhead):
				added(newTok)
				j++
			default:
				removed(oldTok)
				i++
			}
		}
	}
	return res
}

// offset returns the distance from from-1 to the first occurrence of tok in
// s[from:], or -1.
func offset(s []string, from int, tok string) int {
	for p := from; p < len(s); p++ {
		if s[p] == tok {
			return p - from + 1
		}
	}
	return -1
}
