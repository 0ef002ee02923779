package stubs

// Hand-assembled WebAssembly decode module. Each export takes five i32 salts
// and computes table[digitsum(salt2)] + offset + base, reading the table from
// linear memory. Signed div/rem make negative salts index below zero, which
// traps on the load.

// ModuleOptions shapes the generated module
type ModuleOptions struct {
	// Doubled uses the historical 2*tens + 2*ones + hundreds index for ndx and mdx
	Doubled bool
	// Omit leaves out the named export
	Omit string
	// BadSignature gives cdx four parameters instead of five
	BadSignature bool
}

const (
	opLocalGet = 0x20
	opI32Const = 0x41
	opI32Add   = 0x6a
	opI32Mul   = 0x6c
	opI32DivS  = 0x6d
	opI32RemS  = 0x6f
	opI32Load8 = 0x2d
	opEnd      = 0x0b
	valI32     = 0x7f
	funcType   = 0x60
)

var moduleTable = [40]byte{
	5, 8, 4, 7, 9, 4, 6, 9, 5, 5,
	6, 5, 3, 5, 4, 4, 9, 6, 6, 8,
	8, 6, 8, 6, 5, 8, 4, 9, 5, 9,
	8, 5, 3, 4, 7, 7, 4, 7, 3, 9,
}

// digit weights over (ones, tens, hundreds) of salt2
type weights [3]int32

type exportDef struct {
	name   string
	index  weights
	offset weights
	base   int32
}

func exportDefs(doubled bool) []exportDef {
	idx := weights{1, 1, 1}
	late := idx
	if doubled {
		late = weights{2, 2, 1}
	}
	return []exportDef{
		{name: "cdx", index: idx, offset: weights{0, 0, 0}, base: 22},
		{name: "rdx", index: idx, offset: weights{0, 1, 1}, base: 32},
		{name: "bdx", index: idx, offset: weights{0, 1, 1}, base: 60},
		{name: "ndx", index: late, offset: weights{0, 1, 0}, base: 88},
		{name: "mdx", index: late, offset: weights{0, 0, 1}, base: 110},
	}
}

// DecodeModule returns the canonical module, or the doubled variant
func DecodeModule(doubled bool) []byte {
	return BuildDecodeModule(ModuleOptions{Doubled: doubled})
}

// BuildDecodeModule assembles a module binary
func BuildDecodeModule(opts ModuleOptions) []byte {
	defs := exportDefs(opts.Doubled)

	// type 0: (i32 x5) -> i32, type 1: (i32 x4) -> i32
	types := []byte{2, funcType, 5, valI32, valI32, valI32, valI32, valI32, 1, valI32,
		funcType, 4, valI32, valI32, valI32, valI32, 1, valI32}

	funcs := []byte{byte(len(defs))}
	for i := range defs {
		if i == 0 && opts.BadSignature {
			funcs = append(funcs, 1)
			continue
		}
		funcs = append(funcs, 0)
	}

	// one page, no maximum
	memory := []byte{1, 0x00, 1}

	var exports []byte
	count := 0
	for i, s := range defs {
		if s.name == opts.Omit {
			continue
		}
		count++
		exports = append(exports, uleb(uint32(len(s.name)))...)
		exports = append(exports, s.name...)
		exports = append(exports, 0x00, byte(i))
	}
	exports = append(uleb(uint32(count)), exports...)

	code := []byte{byte(len(defs))}
	for _, s := range defs {
		body := functionBody(s)
		code = append(code, uleb(uint32(len(body)))...)
		code = append(code, body...)
	}

	data := []byte{1, 0x00, opI32Const, 0x00, opEnd, byte(len(moduleTable))}
	data = append(data, moduleTable[:]...)

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(1, types)...)
	out = append(out, section(3, funcs)...)
	out = append(out, section(5, memory)...)
	out = append(out, section(7, exports)...)
	out = append(out, section(10, code)...)
	out = append(out, section(11, data)...)
	return out
}

func functionBody(s exportDef) []byte {
	b := []byte{0x00} // no locals

	// table[index]
	b = append(b, weightedDigits(s.index)...)
	b = append(b, opI32Load8, 0x00, 0x00)

	for d, w := range s.offset {
		if w == 0 {
			continue
		}
		b = append(b, weightedDigit(d, w)...)
		b = append(b, opI32Add)
	}

	b = append(b, opI32Const)
	b = append(b, sleb(s.base)...)
	b = append(b, opI32Add, opEnd)
	return b
}

// weightedDigits sums w[d]*digit(d) over the non-zero weights
func weightedDigits(w weights) []byte {
	var b []byte
	first := true
	for d, wt := range w {
		if wt == 0 {
			continue
		}
		b = append(b, weightedDigit(d, wt)...)
		if !first {
			b = append(b, opI32Add)
		}
		first = false
	}
	return b
}

// weightedDigit pushes w * ((salt2 / 10^d) % 10)
func weightedDigit(d int, w int32) []byte {
	b := []byte{opLocalGet, 1}
	if d > 0 {
		div := int32(1)
		for i := 0; i < d; i++ {
			div *= 10
		}
		b = append(b, opI32Const)
		b = append(b, sleb(div)...)
		b = append(b, opI32DivS)
	}
	b = append(b, opI32Const)
	b = append(b, sleb(10)...)
	b = append(b, opI32RemS)
	if w != 1 {
		b = append(b, opI32Const)
		b = append(b, sleb(w)...)
		b = append(b, opI32Mul)
	}
	return b
}

func section(id byte, content []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(content)))...)
	return append(out, content...)
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if done {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
