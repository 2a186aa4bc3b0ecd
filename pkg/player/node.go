// Package player holds the per-guild playback state: the Node (queue,
// now-playing, volume, pause flag, equalizer, opaque data slot) and the
// concurrent registry that owns the canonical Node for each guild.
package player

import (
	"sync"
	"time"

	"github.com/driftvale/ripple/pkg/types"
)

const (
	// NumBands is the number of equalizer bands an audio node exposes.
	NumBands = 15

	// GainMin mutes a band completely; GainMax doubles it.
	GainMin = -0.25
	GainMax = 1.0

	// DefaultVolume is the player volume assigned to a fresh Node.
	DefaultVolume = 100

	// MaxVolume is the largest volume the audio node accepts.
	MaxVolume = 1000
)

// Track is an opaque encoded track handle minted by the audio backend,
// with optional decoded metadata.
type Track struct {
	// Encoded is the playable handle. Its contents are owned entirely by
	// the backend; this library never inspects it.
	Encoded string `json:"track"`

	Info *TrackInfo `json:"info,omitempty"`
}

// TrackInfo is decoded track metadata as reported by the audio backend.
// Length and Position are in milliseconds, matching the wire format.
type TrackInfo struct {
	Identifier string `json:"identifier"`
	Author     string `json:"author"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
	Length     uint64 `json:"length"`
	Position   uint64 `json:"position"`
	IsSeekable bool   `json:"isSeekable"`
	IsStream   bool   `json:"isStream"`
}

// TrackQueue is a queued playback request. It is immutable once enqueued.
type TrackQueue struct {
	Track Track

	// StartTime is the offset playback begins at.
	StartTime time.Duration

	// EndTime is the offset playback stops at. Zero means play to the
	// track's natural end.
	EndTime time.Duration

	// Requester is the user who asked for the track, zero if unset.
	Requester types.UserID
}

// Band is a single equalizer band adjustment. Band is 0-14, Gain is
// GainMin to GainMax with 0 meaning unmodified.
type Band struct {
	Band uint8   `json:"band"`
	Gain float64 `json:"gain"`
}

// Node is the canonical playback state of one guild.
//
// The registry owns the canonical Node; Get hands out independent
// snapshots, so the update pattern is read, mutate locally, Insert. The
// one exception is the opaque data slot, which is shared by reference
// across snapshots and guarded by its own lock.
type Node struct {
	GuildID   types.GuildID
	Volume    uint16
	IsPaused  bool
	IsOnLoops bool

	// NowPlaying is the track currently on the player, nil when idle.
	NowPlaying *TrackQueue

	// Queue holds pending tracks in FIFO order. NowPlaying is not part
	// of the queue.
	Queue []TrackQueue

	// Bands holds the last equalizer gains pushed to the audio node.
	Bands [NumBands]float64

	data *DataSlot
}

// NewNode creates a Node with default volume and an empty shared data slot.
func NewNode(guildID types.GuildID) *Node {
	return &Node{
		GuildID: guildID,
		Volume:  DefaultVolume,
		data:    &DataSlot{},
	}
}

// Data returns the node's shared data slot. The slot survives snapshotting:
// every copy of this Node taken from the registry refers to the same slot.
func (n *Node) Data() *DataSlot {
	if n.data == nil {
		n.data = &DataSlot{}
	}
	return n.data
}

// clone returns an independent snapshot of n. The queue is copied; the data
// slot is shared by design.
func (n *Node) clone() *Node {
	c := *n
	if n.NowPlaying != nil {
		np := *n.NowPlaying
		c.NowPlaying = &np
	}
	c.Queue = make([]TrackQueue, len(n.Queue))
	copy(c.Queue, n.Queue)
	return &c
}

// DataSlot is an opaque, caller-defined value attached to a Node. Reads are
// expected to far outnumber writes, so it carries its own read/write lock
// independent of the registry's map-level synchronisation.
type DataSlot struct {
	mu    sync.RWMutex
	value any
	set   bool
}

// Get returns the stored value and whether one has been set.
func (d *DataSlot) Get() (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.value, d.set
}

// GetOrInit returns the stored value, initialising it with init first if
// nothing has been set. The initialize-if-absent step is explicit: a plain
// Get never mutates the slot.
func (d *DataSlot) GetOrInit(init func() any) any {
	d.mu.RLock()
	if d.set {
		v := d.value
		d.mu.RUnlock()
		return v
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.set {
		d.value = init()
		d.set = true
	}
	return d.value
}

// Set stores a new value, replacing any previous one.
func (d *DataSlot) Set(v any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.value = v
	d.set = true
}
