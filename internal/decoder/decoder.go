// Package decoder recovers activity IDs from the MD5 hashes embedded in
// legacy activity QR codes.
//
// The hash carries no structure, so recovery is a dictionary search over the
// small ID ranges and prefixes that legacy clients are known to have used.
// The first candidate whose MD5 matches wins; collisions are not detected.
package decoder

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Stage names reported in Result.Method.
const (
	MethodPrecomputed = "precomputed"
	MethodBruteForce  = "brute_force"
	MethodUCI         = "uci_prefix"
	MethodPrefixed    = "prefixed"
	MethodZeroPadded  = "zero_padded"
	MethodFragment    = "fragment_analysis"
)

// ErrInvalidHash is reported for input that is not 32 hex characters.
var ErrInvalidHash = errors.New("activity hash must be 32 hex characters")

// DefaultPrefixes are the plaintext prefixes legacy clients hashed IDs with.
var DefaultPrefixes = []string{"activity_", "act_", "event_", "VG_ACTIVITY_", "pomelox_"}

// fragmentModuli are applied to the leading 32 bits when nothing matches.
var fragmentModuli = []uint32{25, 50, 100, 200}

// Result is the outcome of decoding one hash.
type Result struct {
	Success    bool    `json:"success"`
	ActivityID int64   `json:"activityId,omitempty"`
	Method     string  `json:"method,omitempty"`
	Matched    string  `json:"matched,omitempty"`
	Guesses    []int64 `json:"guesses,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Options tune the search ranges. Zero values select the defaults.
type Options struct {
	Prefixes      []string
	TableSize     int // IDs precomputed per prefix
	BruteForceMax int
	UCIMax        int
	PrefixedMax   int
	ZeroPadMax    int
	// SkipTable disables the precomputed stage.
	SkipTable bool
}

func (o Options) withDefaults() Options {
	if o.Prefixes == nil {
		o.Prefixes = DefaultPrefixes
	}
	if o.TableSize <= 0 {
		o.TableSize = 200
	}
	if o.BruteForceMax <= 0 {
		o.BruteForceMax = 1000
	}
	if o.UCIMax <= 0 {
		o.UCIMax = 100
	}
	if o.PrefixedMax <= 0 {
		o.PrefixedMax = 100
	}
	if o.ZeroPadMax <= 0 {
		o.ZeroPadMax = 999
	}
	return o
}

type candidate struct {
	id        int64
	plaintext string
}

// Decoder is safe for concurrent use. The precomputed table is built on the
// first Decode call and never modified afterwards.
type Decoder struct {
	opts  Options
	once  sync.Once
	table map[string]candidate
}

// New returns a Decoder with the given options.
func New(opts Options) *Decoder {
	return &Decoder{opts: opts.withDefaults()}
}

var defaultDecoder = New(Options{})

// Decode decodes hash with the default Decoder.
func Decode(hash string) Result {
	return defaultDecoder.Decode(hash)
}

func (d *Decoder) buildTable() {
	d.table = make(map[string]candidate, d.opts.TableSize*(len(d.opts.Prefixes)+1))
	add := func(id int64, plaintext string) {
		sum := md5Hex(plaintext)
		if _, ok := d.table[sum]; !ok {
			d.table[sum] = candidate{id: id, plaintext: plaintext}
		}
	}
	for i := 1; i <= d.opts.TableSize; i++ {
		s := strconv.Itoa(i)
		add(int64(i), s)
		for _, p := range d.opts.Prefixes {
			add(int64(i), p+s)
		}
	}
}

// Decode searches for the plaintext of hash. It never panics: malformed
// input and exhausted searches both produce Success=false.
func (d *Decoder) Decode(hash string) Result {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if !isHex32(hash) {
		return Result{Error: ErrInvalidHash.Error()}
	}

	if !d.opts.SkipTable {
		d.once.Do(d.buildTable)
		if c, ok := d.table[hash]; ok {
			return matched(MethodPrecomputed, c.id, c.plaintext)
		}
	}

	stages := []struct {
		method string
		max    int
		format func(i int) []string
	}{
		{MethodBruteForce, d.opts.BruteForceMax, func(i int) []string {
			return []string{strconv.Itoa(i)}
		}},
		{MethodUCI, d.opts.UCIMax, func(i int) []string {
			return []string{"UCI_" + strconv.Itoa(i)}
		}},
		{MethodPrefixed, d.opts.PrefixedMax, func(i int) []string {
			out := make([]string, len(d.opts.Prefixes))
			for k, p := range d.opts.Prefixes {
				out[k] = p + strconv.Itoa(i)
			}
			return out
		}},
		{MethodZeroPadded, d.opts.ZeroPadMax, func(i int) []string {
			return []string{fmt.Sprintf("%03d", i)}
		}},
	}
	for _, st := range stages {
		for i := 1; i <= st.max; i++ {
			for _, plaintext := range st.format(i) {
				if md5Hex(plaintext) == hash {
					return matched(st.method, int64(i), plaintext)
				}
			}
		}
	}

	return Result{Method: MethodFragment, Guesses: FragmentGuesses(hash)}
}

// FragmentGuesses interprets the first 8 hex characters of hash as an
// unsigned 32-bit value v and returns v%m+1 for each modulus in 25, 50, 100
// and 200. They are hints, not matches.
func FragmentGuesses(hash string) []int64 {
	if len(hash) < 8 {
		return nil
	}
	v, err := strconv.ParseUint(hash[:8], 16, 32)
	if err != nil {
		return nil
	}
	out := make([]int64, 0, len(fragmentModuli))
	for _, m := range fragmentModuli {
		out = append(out, int64(uint32(v)%m)+1)
	}
	return out
}

func matched(method string, id int64, plaintext string) Result {
	return Result{Success: true, ActivityID: id, Method: method, Matched: plaintext}
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func isHex32(s string) bool {
	if len(s) != 32 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
