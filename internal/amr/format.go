package amr

import "github.com/glizzus/amrprobe/internal/media"

// Format describes the single audio track of an AMR stream.
type Format struct {
	MIMEType     string
	ChannelCount int32
	SampleRate   int32
}

// DescribeFormat returns the track format for kind. AMR streams are always
// mono.
func DescribeFormat(kind Kind) Format {
	return Format{
		MIMEType:     kind.MIMEType(),
		ChannelCount: 1,
		SampleRate:   kind.SampleRate(),
	}
}

// Meta renders f as a MetaData container.
func (f Format) Meta() *media.MetaData {
	meta := media.NewMetaData()
	meta.SetString(media.KeyMIMEType, f.MIMEType)
	meta.SetInt32(media.KeyChannelCount, f.ChannelCount)
	meta.SetInt32(media.KeySampleRate, f.SampleRate)
	return meta
}
