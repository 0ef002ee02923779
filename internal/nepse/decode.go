package nepse

// DecodeFunc maps the five challenge salts to a cut index
type DecodeFunc func(s1, s2, s3, s4, s5 int) int

// DecodeFunctionSet is the five decode functions used by DeriveToken. It is
// built once at initialization and shared read-only afterwards.
type DecodeFunctionSet struct {
	C, R, B, N, M DecodeFunc

	// Source is "wasm" or "fallback"; informational only
	Source string
}

const (
	SourceWASM     = "wasm"
	SourceFallback = "fallback"
)

// decodeTable is indexed by the digit sum of salt2
var decodeTable = [40]int{
	5, 8, 4, 7, 9, 4, 6, 9, 5, 5,
	6, 5, 3, 5, 4, 4, 9, 6, 6, 8,
	8, 6, 8, 6, 5, 8, 4, 9, 5, 9,
	8, 5, 3, 4, 7, 7, 4, 7, 3, 9,
}

// salt2Digits splits salt2 into ones, tens and hundreds
func salt2Digits(s2 int) (o, t, h int) {
	return s2 % 10, s2 / 10 % 10, s2 / 100 % 10
}

// lookup returns decodeTable[i], or ok=false when i is outside the table
func lookup(i int) (int, bool) {
	if i < 0 || i >= len(decodeTable) {
		return 0, false
	}
	return decodeTable[i], true
}

// FallbackDecoders computes the decode functions from the lookup table over
// the digits of salt2. Only salt2 affects the result. A negative salt2 maps
// outside the table and yields -1.
func FallbackDecoders() *DecodeFunctionSet {
	fn := func(offset func(o, t, h int) int, base int) DecodeFunc {
		return func(_, s2, _, _, _ int) int {
			o, t, h := salt2Digits(s2)
			v, ok := lookup(o + t + h)
			if !ok {
				return -1
			}
			return offset(o, t, h) + v + base
		}
	}

	return &DecodeFunctionSet{
		C:      fn(func(o, t, h int) int { return 0 }, 22),
		R:      fn(func(o, t, h int) int { return t + h }, 32),
		B:      fn(func(o, t, h int) int { return t + h }, 60),
		N:      fn(func(o, t, h int) int { return t }, 88),
		M:      fn(func(o, t, h int) int { return h }, 110),
		Source: SourceFallback,
	}
}

// CutPoints evaluates d in the argument order DeriveToken uses
func (d *DecodeFunctionSet) CutPoints(s1, s2, s3, s4, s5 int) [5]int {
	return [5]int{
		d.C(s1, s2, s3, s4, s5),
		d.R(s1, s2, s4, s3, s5),
		d.B(s1, s2, s4, s3, s5),
		d.N(s1, s2, s4, s3, s5),
		d.M(s1, s2, s4, s3, s5),
	}
}
