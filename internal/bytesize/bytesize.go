// Package bytesize parses human-readable sizes for config values such as
// the upload limit ("512Mi", "2Gi", "100MB" or a plain byte count).
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is a size in bytes decoded from config.
type ByteSize uint64

const (
	B ByteSize = 1

	// Decimal units (x1000).
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB

	// Binary units (x1024).
	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
)

var units = map[string]ByteSize{
	"":    B,
	"b":   B,
	"k":   KB,
	"kb":  KB,
	"m":   MB,
	"mb":  MB,
	"g":   GB,
	"gb":  GB,
	"ki":  KiB,
	"kib": KiB,
	"mi":  MiB,
	"mib": MiB,
	"gi":  GiB,
	"gib": GiB,
}

// ParseByteSize parses values like "512Mi", "1Gi", "100MB" or "1048576".
// A fractional number is allowed ("1.5Gi").
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	split := len(s)
	for i, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			split = i
			break
		}
	}
	num := s[:split]
	unit := strings.ToLower(strings.TrimSpace(s[split:]))

	mult, ok := units[unit]
	if !ok {
		return 0, fmt.Errorf("unknown size unit %q in %q", s[split:], s)
	}

	if strings.Contains(num, ".") {
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size %q", s)
		}
		return ByteSize(f * float64(mult)), nil
	}
	n, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return ByteSize(n) * mult, nil
}

// UnmarshalText lets ByteSize fields decode from yaml and mapstructure
// string values.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// String renders the size in the largest binary unit that fits.
func (b ByteSize) String() string {
	switch {
	case b >= GiB:
		return trimZero(float64(b)/float64(GiB)) + "GiB"
	case b >= MiB:
		return trimZero(float64(b)/float64(MiB)) + "MiB"
	case b >= KiB:
		return trimZero(float64(b)/float64(KiB)) + "KiB"
	default:
		return strconv.FormatUint(uint64(b), 10) + "B"
	}
}

func trimZero(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// Int64 converts for APIs that take signed sizes, such as
// http.MaxBytesReader.
func (b ByteSize) Int64() int64 {
	return int64(b)
}
