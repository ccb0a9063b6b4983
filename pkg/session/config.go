package session

import (
	"fmt"
	"time"

	"github.com/mikekulinski/collab/pkg/metrics"
	"github.com/mikekulinski/collab/pkg/synctree"
)

const (
	// DefaultIdleTimeout is how long a session may stay empty before it resets itself.
	DefaultIdleTimeout      = 5 * time.Second
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultTickInterval     = 10 * time.Millisecond
)

type Type int

const (
	// Persistent sessions keep accepting connections after they become empty.
	Persistent Type = iota
	// AdHoc sessions stop accepting connections the first time they become empty.
	AdHoc
)

func (t Type) String() string {
	switch t {
	case Persistent:
		return "Persistent"
	case AdHoc:
		return "AdHoc"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

type Config struct {
	Name string
	ID   uint32
	Type Type
	// Address is where clients reach the session. It is only reported in the Descriptor.
	Address string

	IdleTimeout      time.Duration
	HandshakeTimeout time.Duration
	// TickInterval is the pause between two service loop iterations in Run.
	TickInterval time.Duration

	// Clock defaults to time.Now.
	Clock func() time.Time
	// IDs generates the GUIDs of the elements the session creates. Nil means random.
	IDs synctree.IDGenerator
	// Metrics may be nil.
	Metrics *metrics.Metrics
	// Archive, if set, is handed the tree the session is about to discard when it becomes
	// empty. It is not called for trees without elements.
	Archive func(id uint32, tree *synctree.Tree)
}

type Option func(*Config)

func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

func WithID(id uint32) Option {
	return func(c *Config) {
		c.ID = id
	}
}

func WithType(t Type) Option {
	return func(c *Config) {
		c.Type = t
	}
}

func WithAddress(address string) Option {
	return func(c *Config) {
		c.Address = address
	}
}

func WithIdleTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.IdleTimeout = d
	}
}

func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.HandshakeTimeout = d
	}
}

func WithTickInterval(d time.Duration) Option {
	return func(c *Config) {
		c.TickInterval = d
	}
}

func WithClock(clock func() time.Time) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

func WithIDs(ids synctree.IDGenerator) Option {
	return func(c *Config) {
		c.IDs = ids
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

func WithArchive(archive func(id uint32, tree *synctree.Tree)) Option {
	return func(c *Config) {
		c.Archive = archive
	}
}

// NewConfig returns the default configuration with opts applied.
func NewConfig(opts ...Option) Config {
	c := Config{
		Name:             "default",
		Type:             Persistent,
		IdleTimeout:      DefaultIdleTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
		TickInterval:     DefaultTickInterval,
		Clock:            time.Now,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// withDefaults fills in the zero fields of c.
func (c Config) withDefaults() Config {
	defaults := NewConfig()
	if c.Name == "" {
		c.Name = defaults.Name
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaults.IdleTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaults.TickInterval
	}
	if c.Clock == nil {
		c.Clock = defaults.Clock
	}
	return c
}
