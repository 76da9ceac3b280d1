package protocol

import (
	"strconv"

	"github.com/dustin/go-humanize"
)

// ByteSize is a count of bytes which marshals to and from humanized forms
// such as "500MB" or "20 GiB". Bare integers are also accepted.
type ByteSize uint64

// ParseByteSize parses a humanized or integer byte count.
func ParseByteSize(s string) (ByteSize, error) {
	var n, err = humanize.ParseBytes(s)
	if err != nil {
		return 0, NewValidationError("invalid byte size (%q): %s", s, err)
	}
	return ByteSize(n), nil
}

// String returns the humanized IEC form of the ByteSize.
func (b ByteSize) String() string { return humanize.IBytes(uint64(b)) }

// ArgString returns the ByteSize as a plain decimal, as expected by brokers.
func (b ByteSize) ArgString() string { return strconv.FormatUint(uint64(b), 10) }

// MarshalYAML implements yaml.Marshaler.
func (b ByteSize) MarshalYAML() (interface{}, error) { return b.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var n uint64
	if err := unmarshal(&n); err == nil {
		*b = ByteSize(n)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	var parsed, err = ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
