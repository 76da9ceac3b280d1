package protocol

import (
	"net"
	"strconv"
)

// Broker is the advertised address of a broker node hosting a stream replica.
type Broker struct {
	Host string
	Port uint32
}

// Validate returns an error if the Broker is not well-formed.
func (m Broker) Validate() error {
	if m.Host == "" {
		return NewValidationError("expected Host")
	} else if m.Port == 0 || m.Port > 65535 {
		return NewValidationError("invalid Port (%d; expected 0 < Port <= 65535)", m.Port)
	}
	return nil
}

// Address returns the "host:port" address of the Broker.
func (m Broker) Address() string {
	return net.JoinHostPort(m.Host, strconv.FormatUint(uint64(m.Port), 10))
}

// StreamInfo is the metadata of a single stream, as returned by a metadata
// query. Leader and Replicas are populated only if Code is CodeOK. They're
// consumed by producer and consumer factories, which use them to connect
// to an appropriate data-path broker.
type StreamInfo struct {
	Stream   string
	Code     ResponseCode
	Leader   Broker
	Replicas []Broker
}

// Validate returns an error if the StreamInfo is not well-formed.
func (m *StreamInfo) Validate() error {
	if err := ValidateName(m.Stream, 1, MaxStreamNameLen); err != nil {
		return ExtendContext(err, "Stream")
	} else if err = m.Code.Validate(); err != nil {
		return ExtendContext(err, "Code")
	} else if m.Code != CodeOK {
		return nil // Leader and Replicas are not meaningful.
	} else if err = m.Leader.Validate(); err != nil {
		return ExtendContext(err, "Leader")
	}
	for i, r := range m.Replicas {
		if err := r.Validate(); err != nil {
			return ExtendContext(err, "Replicas[%d]", i)
		}
	}
	return nil
}

// Copy returns a deep copy of the StreamInfo.
func (m StreamInfo) Copy() StreamInfo {
	m.Replicas = append([]Broker(nil), m.Replicas...)
	return m
}

// StreamStats are broker-reported statistics of a stream, keyed on
// statistic name.
type StreamStats map[string]int64

// FirstOffset returns the first offset of the stream, or an error if the
// stream is empty.
func (s StreamStats) FirstOffset() (int64, error) { return s.get(StatFirstChunkID) }

// CommittedChunkID returns the ID of the last chunk committed by a quorum of
// replicas, or an error if no chunk has been committed.
func (s StreamStats) CommittedChunkID() (int64, error) { return s.get(StatCommittedChunkID) }

func (s StreamStats) get(name string) (int64, error) {
	if v, ok := s[name]; !ok {
		return 0, NewValidationError("missing statistic %s", name)
	} else if v == -1 {
		return 0, NewValidationError("statistic %s is not available (stream may be empty)", name)
	} else {
		return v, nil
	}
}

// Names of broker-reported stream statistics.
const (
	StatFirstChunkID     = "first_chunk_id"
	StatCommittedChunkID = "committed_chunk_id"
)
