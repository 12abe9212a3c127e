package amr

import "fmt"

// Kind is the AMR variant of a stream.
type Kind uint8

const (
	NarrowBand Kind = iota
	WideBand
)

const (
	MIMETypeNB = "audio/3gpp"
	MIMETypeWB = "audio/amr-wb"
)

const (
	magicNB = "#!AMR\n"
	magicWB = "#!AMR-WB\n"
)

// FrameDurationUs is the duration of every AMR frame in microseconds.
const FrameDurationUs = 20000

// Frame payload sizes in bits, indexed by frame type.
var (
	frameBitsNB = [...]int{95, 103, 118, 134, 148, 159, 204, 244}
	frameBitsWB = [...]int{132, 177, 253, 285, 317, 365, 397, 461, 477}
)

func (k Kind) String() string {
	switch k {
	case NarrowBand:
		return "AMR-NB"
	case WideBand:
		return "AMR-WB"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Magic returns the file header that introduces a stream of this kind.
func (k Kind) Magic() string {
	if k == WideBand {
		return magicWB
	}
	return magicNB
}

// DataOffset is the byte offset of the first frame header.
func (k Kind) DataOffset() int64 {
	return int64(len(k.Magic()))
}

func (k Kind) SampleRate() int32 {
	if k == WideBand {
		return 16000
	}
	return 8000
}

func (k Kind) MIMEType() string {
	if k == WideBand {
		return MIMETypeWB
	}
	return MIMETypeNB
}

// MaxFrameType is the highest frame type carrying speech for this kind.
func (k Kind) MaxFrameType() uint8 {
	if k == WideBand {
		return uint8(len(frameBitsWB) - 1)
	}
	return uint8(len(frameBitsNB) - 1)
}

// ParseKind maps a Kind's String form or MIME type back to the Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "AMR-NB", MIMETypeNB:
		return NarrowBand, nil
	case "AMR-WB", MIMETypeWB:
		return WideBand, nil
	}
	return 0, fmt.Errorf("unknown AMR kind %q", s)
}

// FrameSize returns the size in bytes of a frame of type ft, including its
// header byte. ok is false if ft is not a valid speech frame type for k.
func FrameSize(k Kind, ft uint8) (size int, ok bool) {
	if ft > k.MaxFrameType() {
		return 0, false
	}
	bits := frameBitsNB[:]
	if k == WideBand {
		bits = frameBitsWB[:]
	}
	return (bits[ft]+7)/8 + 1, true
}
