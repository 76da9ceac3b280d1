package protocol

// LeaderLocator instructs the broker how to place the leader replica of a
// newly created stream. It's a closed set: the zero value is
// LeaderLocatorLeastLeaders, and ParseLeaderLocator refuses anything else
// than the three known tokens.
type LeaderLocator int

const (
	// LeaderLocatorLeastLeaders places the leader on the node hosting the
	// fewest stream leaders.
	LeaderLocatorLeastLeaders LeaderLocator = iota
	// LeaderLocatorClientLocal places the leader on the node the client is connected to.
	LeaderLocatorClientLocal
	// LeaderLocatorRandom places the leader on a random node.
	LeaderLocatorRandom
)

var leaderLocatorTokens = [...]string{
	LeaderLocatorLeastLeaders: "least-leaders",
	LeaderLocatorClientLocal:  "client-local",
	LeaderLocatorRandom:       "random",
}

// ParseLeaderLocator maps a wire token to its LeaderLocator.
func ParseLeaderLocator(s string) (LeaderLocator, error) {
	for i, tok := range leaderLocatorTokens {
		if tok == s {
			return LeaderLocator(i), nil
		}
	}
	return 0, NewValidationError("invalid leader locator (%q; expected one of %q)",
		s, leaderLocatorTokens[:])
}

// String returns the wire token of the LeaderLocator. It panics if the
// LeaderLocator doesn't Validate.
func (l LeaderLocator) String() string {
	if err := l.Validate(); err != nil {
		panic(err.Error())
	}
	return leaderLocatorTokens[l]
}

// Validate returns an error if the LeaderLocator is not a known policy.
func (l LeaderLocator) Validate() error {
	if l < 0 || int(l) >= len(leaderLocatorTokens) {
		return NewValidationError("invalid leader locator (%d)", int(l))
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (l LeaderLocator) MarshalText() ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return []byte(leaderLocatorTokens[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *LeaderLocator) UnmarshalText(b []byte) (err error) {
	*l, err = ParseLeaderLocator(string(b))
	return
}

// MarshalYAML implements yaml.Marshaler.
func (l LeaderLocator) MarshalYAML() (interface{}, error) {
	var b, err = l.MarshalText()
	return string(b), err
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *LeaderLocator) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return l.UnmarshalText([]byte(s))
}
