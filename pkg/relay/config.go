package relay

const defaultWriteConcurrency = 4

// Config tunes how a message's fields are written.
type Config struct {
	// StrictWrites returns the joined field-write errors from Task instead of
	// only logging them.
	StrictWrites bool `json:"strict_writes"`
	// WriteConcurrency bounds concurrent writes per message.
	WriteConcurrency int `json:"write_concurrency"`
	// AttachTimestamp sends values as {value, timestamp} when the body carries a timestamp.
	AttachTimestamp bool `json:"attach_timestamp"`
}

func DefaultConfig() *Config {
	return &Config{WriteConcurrency: defaultWriteConcurrency}
}

func (c *Config) Normalize() {
	if c.WriteConcurrency == 0 {
		c.WriteConcurrency = defaultWriteConcurrency
	}
}

func (c *Config) Validate() error {
	if c.WriteConcurrency <= 0 {
		return ErrInvalidConcurrency
	}

	return nil
}
