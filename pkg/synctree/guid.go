package synctree

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

/*
A GUID has two parts: an origin and a counter. It is a 64-bit number with the origin in the high
order 32 bits and the counter in the low order 32 bits.
Every process that creates elements draws its origin at random when it starts, and then simply
increments the counter for each element it creates. Two processes only produce the same GUID if
they draw the same origin, so a GUID is never reused within a session in practice.
Counters start at 1, which keeps GUID 0 free for the root that every tree shares.
*/
type GUID int64

// RootGUID identifies the root element of every tree.
const RootGUID GUID = 0

func NewGUID(origin uint32, counter uint32) GUID {
	return GUID(int64(origin)<<32 | int64(counter))
}

// Origin is the high 32 bits.
func (g GUID) Origin() uint32 {
	return uint32(uint64(g) >> 32)
}

// Counter is the low 32 bits.
func (g GUID) Counter() uint32 {
	return uint32(uint64(g) & 0xFFFFFFFF)
}

func (g GUID) String() string {
	return fmt.Sprintf("%08x:%d", g.Origin(), g.Counter())
}

// IDGenerator hands out the GUIDs of locally created elements.
type IDGenerator interface {
	Next() GUID
}

type counterGenerator struct {
	origin  uint32
	counter atomic.Uint32
}

// NewIDGenerator returns a generator producing (origin, 1), (origin, 2), ... It is safe for
// concurrent use.
func NewIDGenerator(origin uint32) IDGenerator {
	return &counterGenerator{origin: origin}
}

// RandomIDGenerator returns a generator with a random origin.
func RandomIDGenerator() IDGenerator {
	origin := uuid.New().ID()
	for origin == 0 {
		origin = uuid.New().ID()
	}
	return NewIDGenerator(origin)
}

func (g *counterGenerator) Next() GUID {
	return NewGUID(g.origin, g.counter.Add(1))
}

// SequenceGenerator hands out a fixed list of GUIDs. It panics once the list is used up.
type SequenceGenerator struct {
	mu   sync.Mutex
	ids  []GUID
	next int
}

func NewSequenceGenerator(ids ...GUID) *SequenceGenerator {
	return &SequenceGenerator{ids: ids}
}

func (g *SequenceGenerator) Next() GUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next >= len(g.ids) {
		panic("unrecoverable: sequence generator ran out of ids")
	}
	id := g.ids[g.next]
	g.next++
	return id
}
