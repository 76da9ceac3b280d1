package protocol

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// StreamSpec describes a stream to be created: its name, and the
// administrative arguments which brokers apply to it.
type StreamSpec struct {
	// Name of the stream.
	Name string `yaml:"name"`
	// LeaderLocator places the leader replica of the stream.
	LeaderLocator LeaderLocator `yaml:"leader_locator"`
	// MaxLengthBytes bounds the retained size of the stream. Zero is unbounded.
	MaxLengthBytes ByteSize `yaml:"max_length_bytes,omitempty"`
	// MaxSegmentSizeBytes bounds the size of each on-disk segment file.
	// Zero uses the broker default.
	MaxSegmentSizeBytes ByteSize `yaml:"max_segment_size_bytes,omitempty"`
	// MaxAge bounds the retained age of stream segments. Zero is unbounded.
	MaxAge time.Duration `yaml:"max_age,omitempty"`
	// InitialClusterSize is the number of replicas (including the leader).
	// Zero uses the broker default.
	InitialClusterSize int `yaml:"initial_cluster_size,omitempty"`
	// Arguments are additional broker arguments, passed through as-is.
	// Arguments implied by typed fields above take precedence.
	Arguments map[string]string `yaml:"arguments,omitempty"`
}

// Validate returns an error if the StreamSpec is not well-formed.
func (m *StreamSpec) Validate() error {
	if err := ValidateName(m.Name, 1, MaxStreamNameLen); err != nil {
		return ExtendContext(err, "Name")
	} else if err = m.LeaderLocator.Validate(); err != nil {
		return ExtendContext(err, "LeaderLocator")
	} else if m.MaxSegmentSizeBytes > MaxSegmentSizeLimit {
		return NewValidationError("invalid MaxSegmentSizeBytes (%d; expected <= %d)",
			m.MaxSegmentSizeBytes, MaxSegmentSizeLimit)
	} else if m.MaxAge < 0 || m.MaxAge%time.Second != 0 {
		return NewValidationError("invalid MaxAge (%s; expected a non-negative number of whole seconds)", m.MaxAge)
	} else if m.InitialClusterSize < 0 {
		return NewValidationError("invalid InitialClusterSize (%d; expected >= 0)", m.InitialClusterSize)
	}
	for k := range m.Arguments {
		if k == "" {
			return NewValidationError("invalid Arguments (empty argument name)")
		}
	}
	return nil
}

// Args returns the broker argument mapping of the StreamSpec.
func (m *StreamSpec) Args() map[string]string {
	var out = make(map[string]string, len(m.Arguments)+5)
	for k, v := range m.Arguments {
		out[k] = v
	}
	out[ArgLeaderLocator] = m.LeaderLocator.String()

	if m.MaxLengthBytes != 0 {
		out[ArgMaxLengthBytes] = m.MaxLengthBytes.ArgString()
	}
	if m.MaxSegmentSizeBytes != 0 {
		out[ArgMaxSegmentSizeBytes] = m.MaxSegmentSizeBytes.ArgString()
	}
	if m.MaxAge != 0 {
		out[ArgMaxAge] = strconv.FormatInt(int64(m.MaxAge/time.Second), 10) + "s"
	}
	if m.InitialClusterSize != 0 {
		out[ArgInitialClusterSize] = strconv.Itoa(m.InitialClusterSize)
	}
	return out
}

// SuperStreamSpec describes a super stream: a logical stream composed of
// partition streams, with routing from binding keys to partitions.
type SuperStreamSpec struct {
	StreamSpec `yaml:",inline"`
	// Partitions is the number of partition streams to create, named
	// "{Name}-{N}" and bound to key "{N}". Exclusive of BindingKeys.
	Partitions int `yaml:"partitions,omitempty"`
	// BindingKeys names partitions explicitly: each key K yields partition
	// "{Name}-{K}", bound to K. Exclusive of Partitions.
	BindingKeys []string `yaml:"binding_keys,omitempty"`
}

// Validate returns an error if the SuperStreamSpec is not well-formed.
func (m *SuperStreamSpec) Validate() error {
	if err := m.StreamSpec.Validate(); err != nil {
		return err
	} else if m.Partitions != 0 && len(m.BindingKeys) != 0 {
		return NewValidationError("expected only one of Partitions or BindingKeys")
	} else if m.Partitions < 0 {
		return NewValidationError("invalid Partitions (%d; expected > 0)", m.Partitions)
	} else if m.Partitions == 0 && len(m.BindingKeys) == 0 {
		return NewValidationError("expected Partitions or BindingKeys")
	}

	var seen = make(map[string]struct{}, len(m.BindingKeys))
	for i, k := range m.BindingKeys {
		if err := ValidateName(k, 1, MaxStreamNameLen); err != nil {
			return ExtendContext(err, "BindingKeys[%d]", i)
		} else if _, ok := seen[k]; ok {
			return NewValidationError("duplicate BindingKeys[%d] (%s)", i, k)
		}
		seen[k] = struct{}{}
	}
	for i, p := range m.PartitionNames() {
		if err := ValidateName(p, 1, MaxStreamNameLen); err != nil {
			return ExtendContext(err, "Partitions[%d]", i)
		}
	}
	return nil
}

// Keys returns the binding keys of the SuperStreamSpec, in partition order.
func (m *SuperStreamSpec) Keys() []string {
	if len(m.BindingKeys) != 0 {
		return append([]string(nil), m.BindingKeys...)
	}
	var out = make([]string, m.Partitions)
	for i := range out {
		out[i] = strconv.Itoa(i)
	}
	return out
}

// PartitionNames returns the partition stream names of the SuperStreamSpec,
// in the same order as Keys.
func (m *SuperStreamSpec) PartitionNames() []string {
	var keys = m.Keys()
	for i, k := range keys {
		keys[i] = m.Name + "-" + k
	}
	return keys
}

// StreamSpecs is a document of StreamSpecs and SuperStreamSpecs, as
// parsed by ParseStreamSpecs.
type StreamSpecs struct {
	Streams      []StreamSpec      `yaml:"streams,omitempty"`
	SuperStreams []SuperStreamSpec `yaml:"super_streams,omitempty"`
}

// Validate returns an error if any spec of the StreamSpecs is not
// well-formed, or if a name is repeated.
func (m *StreamSpecs) Validate() error {
	var seen = make(map[string]struct{})
	for i := range m.Streams {
		if err := m.Streams[i].Validate(); err != nil {
			return ExtendContext(err, "Streams[%d]", i)
		} else if _, ok := seen[m.Streams[i].Name]; ok {
			return NewValidationError("duplicate stream name (%s)", m.Streams[i].Name)
		}
		seen[m.Streams[i].Name] = struct{}{}
	}
	for i := range m.SuperStreams {
		if err := m.SuperStreams[i].Validate(); err != nil {
			return ExtendContext(err, "SuperStreams[%d]", i)
		} else if _, ok := seen[m.SuperStreams[i].Name]; ok {
			return NewValidationError("duplicate stream name (%s)", m.SuperStreams[i].Name)
		}
		seen[m.SuperStreams[i].Name] = struct{}{}
	}
	return nil
}

// ParseStreamSpecs decodes and validates a YAML StreamSpecs document, eg:
//
//	streams:
//	  - name: orders
//	    leader_locator: client-local
//	    max_length_bytes: 20GB
//	    max_age: 72h
//	super_streams:
//	  - name: invoices
//	    partitions: 3
func ParseStreamSpecs(b []byte) (*StreamSpecs, error) {
	var out = new(StreamSpecs)
	if err := yaml.UnmarshalStrict(b, out); err != nil {
		return nil, errors.Wrap(err, "decoding stream specs")
	} else if err = out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Broker argument names of StreamSpec fields.
const (
	ArgLeaderLocator       = "queue-leader-locator"
	ArgMaxLengthBytes      = "max-length-bytes"
	ArgMaxSegmentSizeBytes = "stream-max-segment-size-bytes"
	ArgMaxAge              = "max-age"
	ArgInitialClusterSize  = "initial-cluster-size"
)

// MaxSegmentSizeLimit is the largest segment size accepted by brokers.
const MaxSegmentSizeLimit ByteSize = 3_000_000_000
