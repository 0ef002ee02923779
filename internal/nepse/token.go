package nepse

// DeriveToken removes the five characters the decode functions point at from
// the challenge's access token. cdx takes the salts in order; the other four
// take salt3 and salt4 swapped.
func DeriveToken(ch Challenge, d *DecodeFunctionSet) string {
	s1, s2, s3, s4, s5 := ch.Salt1, ch.Salt2, ch.Salt3, ch.Salt4, ch.Salt5

	c := d.C(s1, s2, s3, s4, s5)
	r := d.R(s1, s2, s4, s3, s5)
	b := d.B(s1, s2, s4, s3, s5)
	n := d.N(s1, s2, s4, s3, s5)
	m := d.M(s1, s2, s4, s3, s5)

	return cutAt(ch.AccessToken, c, r, b, n, m)
}

// cutAt drops the byte at each cut point and joins the segments between them.
// Out-of-order or out-of-range cut points produce empty segments, never a panic.
func cutAt(tok string, cuts ...int) string {
	buf := make([]byte, 0, len(tok))
	start := 0
	for _, cut := range cuts {
		buf = append(buf, segment(tok, start, cut)...)
		start = cut + 1
	}
	buf = append(buf, segment(tok, start, len(tok))...)
	return string(buf)
}

// segment is tok[from:to] with both bounds clamped to [0, len(tok)]; a
// reversed range is empty.
func segment(tok string, from, to int) string {
	from = clamp(from, 0, len(tok))
	to = clamp(to, 0, len(tok))
	if from >= to {
		return ""
	}
	return tok[from:to]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
