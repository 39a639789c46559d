package protocol

import "strconv"

type Version int32

const (
	Version1_16   Version = 735
	Version1_18_2 Version = 758
	Version1_19   Version = 759
	Version1_19_3 Version = 761
	Version1_20_2 Version = 764
)

func (v Version) Name() string {
	switch v {
	case Version1_16:
		return "1.16"
	case Version1_18_2:
		return "1.18.2"
	case Version1_19:
		return "1.19"
	case Version1_19_3:
		return "1.19.3"
	case Version1_20_2:
		return "1.20.2"
	default:
		return strconv.Itoa(int(v))
	}
}

// HasLoginStartUUID reports whether the client sends its UUID in the login start packet.
func (v Version) HasLoginStartUUID() bool {
	return v >= Version1_19
}

// HasLoginSuccessProperties reports whether login success carries the profile properties array.
// Versions before 1.16 predate the binary UUID and are handled separately.
func (v Version) HasLoginSuccessProperties() bool {
	return v >= Version1_19
}
