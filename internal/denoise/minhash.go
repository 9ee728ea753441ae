package denoise

import (
	"encoding/binary"
	"hash/fnv"
	"math/bits"
	"math/rand"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MinHash parameters. The permutation seed is fixed so signatures are
// reproducible across runs and machines.
const (
	numPerms    = 128
	numBands    = 16
	rowsPerBand = numPerms / numBands
	shingleLen  = 3
	permSeed    = 42

	mersenne61 = (1 << 61) - 1
	mask32     = (1 << 32) - 1
)

// permutation is one member of the hash family h(x) = (a*x + b) mod 2^61-1.
type permutation struct {
	a, b uint64
}

var perms = makePerms()

func makePerms() [numPerms]permutation {
	r := rand.New(rand.NewSource(permSeed))
	var out [numPerms]permutation
	for i := range out {
		out[i] = permutation{
			a: 1 + r.Uint64()%(mersenne61-1),
			b: r.Uint64() % mersenne61,
		}
	}
	return out
}

// mulAddMod61 computes (a*x + b) mod 2^61-1 without overflow. The 128-bit
// product reduces using 2^64 ≡ 8 (mod 2^61-1).
func mulAddMod61(a, x, b uint64) uint64 {
	hi, lo := bits.Mul64(a, x)
	sum := (lo & mersenne61) + (hi<<3 | lo>>61)
	if sum >= mersenne61 {
		sum -= mersenne61
	}
	sum += b
	if sum >= mersenne61 {
		sum -= mersenne61
	}
	return sum
}

// normalizeText applies NFKC, lowercases, and collapses runs of whitespace,
// so typographic variants of the same headline shingle identically.
func normalizeText(s string) string {
	s = norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// shingleHashes returns the FNV-1a 32 hash of each 3-rune shingle. Text
// shorter than one shingle hashes as a single unit; empty text returns nil.
func shingleHashes(text string) []uint64 {
	runes := []rune(normalizeText(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) < shingleLen {
		return []uint64{hashShingle(string(runes))}
	}

	hashes := make([]uint64, 0, len(runes)-shingleLen+1)
	for i := 0; i+shingleLen <= len(runes); i++ {
		hashes = append(hashes, hashShingle(string(runes[i:i+shingleLen])))
	}
	return hashes
}

func hashShingle(s string) uint64 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return uint64(h.Sum32())
}

// Signature computes the 128-value MinHash signature of a text. Empty text
// yields the all-max signature, which collides only with other empty texts.
func Signature(text string) []uint32 {
	sig := make([]uint32, numPerms)
	hashes := shingleHashes(text)
	if len(hashes) == 0 {
		for i := range sig {
			sig[i] = mask32
		}
		return sig
	}

	for i, p := range perms {
		min := uint64(mask32)
		for _, x := range hashes {
			if v := mulAddMod61(p.a, x, p.b) & mask32; v < min {
				min = v
			}
		}
		sig[i] = uint32(min)
	}
	return sig
}

// jaccardEstimate is the fraction of signature positions that agree.
func jaccardEstimate(a, b []uint32) float64 {
	equal := 0
	for i := range a {
		if a[i] == b[i] {
			equal++
		}
	}
	return float64(equal) / float64(len(a))
}

// lshIndex buckets signatures into 16 bands of 8 rows each. Two items
// sharing any band bucket become candidate pairs.
type lshIndex struct {
	bands [numBands]map[uint64][]int
}

func newLSHIndex() *lshIndex {
	idx := &lshIndex{}
	for b := range idx.bands {
		idx.bands[b] = map[uint64][]int{}
	}
	return idx
}

// candidates returns indexes already bucketed with sig, then adds sig
// under id.
func (idx *lshIndex) candidates(id int, sig []uint32) []int {
	var out []int
	seen := map[int]bool{}
	for b := 0; b < numBands; b++ {
		key := bandKey(b, sig[b*rowsPerBand:(b+1)*rowsPerBand])
		for _, other := range idx.bands[b][key] {
			if !seen[other] {
				seen[other] = true
				out = append(out, other)
			}
		}
		idx.bands[b][key] = append(idx.bands[b][key], id)
	}
	return out
}

func bandKey(band int, rows []uint32) uint64 {
	h := fnv.New64a()
	var buf [4]byte
	buf[0] = byte(band)
	h.Write(buf[:1])
	for _, v := range rows {
		binary.LittleEndian.PutUint32(buf[:], v)
		h.Write(buf[:])
	}
	return h.Sum64()
}
