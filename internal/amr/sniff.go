package amr

import (
	"io"
	"strings"

	"github.com/glizzus/amrprobe/internal/util"
)

// Confidence reported by Sniff on a match.
const Confidence float32 = 0.5

const sniffLen = len(magicWB)

var sniffOrder = []Kind{NarrowBand, WideBand}

// Sniff reads the first bytes of src and reports whether it holds an AMR
// stream. It needs at least 9 readable bytes even for narrowband streams.
func Sniff(src io.ReaderAt) (Kind, float32, bool) {
	var header [sniffLen]byte
	if n, _ := src.ReadAt(header[:], 0); n != sniffLen {
		return 0, 0, false
	}

	kind, ok := util.FindFirst(sniffOrder, func(k Kind) bool {
		return strings.HasPrefix(string(header[:]), k.Magic())
	})
	if !ok {
		return 0, 0, false
	}
	return kind, Confidence, true
}
