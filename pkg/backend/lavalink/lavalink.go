// Package lavalink implements [backend.Backend] against a Lavalink v3
// compatible audio node over its websocket protocol.
//
// The client holds a single authenticated websocket: commands are JSON ops
// written under a write lock, server pushes are decoded by a read loop into
// the typed event stream. Track search and REST track resolution are out of
// scope; the encoded track handles passed to Play come from elsewhere.
package lavalink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/driftvale/ripple/pkg/backend"
	"github.com/driftvale/ripple/pkg/player"
	"github.com/driftvale/ripple/pkg/types"
	"github.com/driftvale/ripple/pkg/voice"
)

const clientName = "ripple/1.x"

// Config holds the connection parameters for an audio node.
type Config struct {
	// Host and Port locate the node.
	Host string
	Port uint16

	// Password is the node's authorization token.
	Password string

	// Secure selects wss:// instead of ws://.
	Secure bool

	// BotID is the user ID of the bot, sent in the handshake.
	BotID types.UserID

	// ShardCount is the bot's Discord shard count, sent in the handshake.
	ShardCount uint64
}

// Client is a live connection to one audio node. Safe for concurrent use.
type Client struct {
	conn   *websocket.Conn
	events chan backend.Event

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Connect dials the audio node and starts the event read loop.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("lavalink: host must not be empty")
	}

	scheme := "ws"
	if cfg.Secure {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: cfg.Host + ":" + strconv.Itoa(int(cfg.Port))}

	headers := http.Header{}
	headers.Set("Authorization", cfg.Password)
	headers.Set("User-Id", cfg.BotID.String())
	headers.Set("Num-Shards", strconv.FormatUint(cfg.ShardCount, 10))
	headers.Set("Client-Name", clientName)

	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("lavalink: dial %s: %w", u.String(), err)
	}
	// Event payloads are small; the default 32 KiB read limit only hurts.
	conn.SetReadLimit(1 << 20)

	c := &Client{
		conn:   conn,
		events: make(chan backend.Event, 64),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// CreateSession implements [backend.Backend]. It forwards the assembled
// voice connection descriptor so the node can open the guild's player.
func (c *Client) CreateSession(ctx context.Context, ci voice.ConnectionInfo) error {
	if err := backend.ValidateConnectionInfo(ci); err != nil {
		return err
	}
	return c.send(ctx, "voiceUpdate", voiceUpdateOp{
		Op:        "voiceUpdate",
		GuildID:   ci.GuildID.String(),
		SessionID: ci.SessionID,
		Event: voiceServerPayload{
			Token:    ci.Token,
			GuildID:  ci.GuildID.String(),
			Endpoint: ci.Endpoint,
		},
	})
}

// Destroy implements [backend.Backend].
func (c *Client) Destroy(ctx context.Context, guildID types.GuildID) error {
	return c.send(ctx, "destroy", guildOp{Op: "destroy", GuildID: guildID.String()})
}

// Play implements [backend.Backend].
func (c *Client) Play(ctx context.Context, guildID types.GuildID, track string, opts backend.PlayOptions) error {
	op := playOp{
		Op:        "play",
		GuildID:   guildID.String(),
		Track:     track,
		StartTime: durationMillis(opts.StartTime),
		NoReplace: opts.NoReplace,
		Pause:     opts.Pause,
	}
	if opts.EndTime > 0 {
		end := durationMillis(opts.EndTime)
		op.EndTime = &end
	}
	return c.send(ctx, "play", op)
}

// Stop implements [backend.Backend].
func (c *Client) Stop(ctx context.Context, guildID types.GuildID) error {
	return c.send(ctx, "stop", guildOp{Op: "stop", GuildID: guildID.String()})
}

// SetPause implements [backend.Backend].
func (c *Client) SetPause(ctx context.Context, guildID types.GuildID, pause bool) error {
	return c.send(ctx, "pause", pauseOp{Op: "pause", GuildID: guildID.String(), Pause: pause})
}

// Seek implements [backend.Backend].
func (c *Client) Seek(ctx context.Context, guildID types.GuildID, position time.Duration) error {
	return c.send(ctx, "seek", seekOp{Op: "seek", GuildID: guildID.String(), Position: durationMillis(position)})
}

// SetVolume implements [backend.Backend].
func (c *Client) SetVolume(ctx context.Context, guildID types.GuildID, volume uint16) error {
	if volume > player.MaxVolume {
		volume = player.MaxVolume
	}
	return c.send(ctx, "volume", volumeOp{Op: "volume", GuildID: guildID.String(), Volume: volume})
}

// Equalize implements [backend.Backend].
func (c *Client) Equalize(ctx context.Context, guildID types.GuildID, bands []player.Band) error {
	return c.send(ctx, "equalizer", equalizerOp{Op: "equalizer", GuildID: guildID.String(), Bands: bands})
}

// Events implements [backend.Backend]. The channel closes when the node
// connection terminates.
func (c *Client) Events() <-chan backend.Event { return c.events }

// Close implements [backend.Backend].
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close(websocket.StatusNormalClosure, "client closed")
	})
	return nil
}

// send marshals op and writes it as a single text message. Transport
// failures come back as a [*backend.NetworkError].
func (c *Client) send(ctx context.Context, name string, op any) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("lavalink: encode %s: %w", name, err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return &backend.NetworkError{Op: name, Err: err}
	}
	return nil
}

// readLoop receives JSON messages from the node and forwards decoded events
// until the connection dies.
func (c *Client) readLoop() {
	defer close(c.events)

	for {
		_, msg, err := c.conn.Read(context.Background())
		if err != nil {
			select {
			case <-c.done:
			default:
				slog.Warn("lavalink: read loop terminated", "err", err)
			}
			return
		}

		ev, err := parseMessage(msg)
		if err != nil {
			slog.Debug("lavalink: dropping undecodable message", "err", err)
			continue
		}
		if ev == nil {
			continue
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

// ---- wire types ----

type guildOp struct {
	Op      string `json:"op"`
	GuildID string `json:"guildId"`
}

type voiceUpdateOp struct {
	Op        string             `json:"op"`
	GuildID   string             `json:"guildId"`
	SessionID string             `json:"sessionId"`
	Event     voiceServerPayload `json:"event"`
}

type voiceServerPayload struct {
	Token    string `json:"token"`
	GuildID  string `json:"guild_id"`
	Endpoint string `json:"endpoint"`
}

type playOp struct {
	Op        string  `json:"op"`
	GuildID   string  `json:"guildId"`
	Track     string  `json:"track"`
	StartTime uint64  `json:"startTime"`
	EndTime   *uint64 `json:"endTime,omitempty"`
	NoReplace bool    `json:"noReplace"`
	Pause     bool    `json:"pause"`
}

type pauseOp struct {
	Op      string `json:"op"`
	GuildID string `json:"guildId"`
	Pause   bool   `json:"pause"`
}

type seekOp struct {
	Op       string `json:"op"`
	GuildID  string `json:"guildId"`
	Position uint64 `json:"position"`
}

type volumeOp struct {
	Op      string `json:"op"`
	GuildID string `json:"guildId"`
	Volume  uint16 `json:"volume"`
}

type equalizerOp struct {
	Op      string        `json:"op"`
	GuildID string        `json:"guildId"`
	Bands   []player.Band `json:"bands"`
}

// serverMessage is the superset of every inbound payload; Op and Type
// select which fields are meaningful.
type serverMessage struct {
	Op   string `json:"op"`
	Type string `json:"type"`

	GuildID string `json:"guildId"`

	// playerUpdate
	State struct {
		Time     int64 `json:"time"`
		Position int64 `json:"position"`
	} `json:"state"`

	// stats
	Players        int64 `json:"players"`
	PlayingPlayers int64 `json:"playingPlayers"`
	Uptime         int64 `json:"uptime"`
	Memory         struct {
		Free       int64 `json:"free"`
		Used       int64 `json:"used"`
		Allocated  int64 `json:"allocated"`
		Reservable int64 `json:"reservable"`
	} `json:"memory"`
	CPU struct {
		Cores        int64   `json:"cores"`
		SystemLoad   float64 `json:"systemLoad"`
		LavalinkLoad float64 `json:"lavalinkLoad"`
	} `json:"cpu"`
	FrameStats *struct {
		Sent    int64 `json:"sent"`
		Nulled  int64 `json:"nulled"`
		Deficit int64 `json:"deficit"`
	} `json:"frameStats"`

	// event
	Track       string `json:"track"`
	Reason      string `json:"reason"`
	Error       string `json:"error"`
	ThresholdMS uint64 `json:"thresholdMs"`
	Code        int    `json:"code"`
	ByRemote    bool   `json:"byRemote"`
	Cleanup     bool   `json:"cleanup"`
	Exception   *struct {
		Message  string `json:"message"`
		Severity string `json:"severity"`
		Cause    string `json:"cause"`
	} `json:"exception"`
}

// parseMessage decodes one inbound websocket message into a typed event.
// Messages this client does not consume decode to (nil, nil).
func parseMessage(data []byte) (backend.Event, error) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}

	guildID, err := types.ParseGuildID(msg.GuildID)
	if err != nil {
		return nil, fmt.Errorf("bad guildId %q: %w", msg.GuildID, err)
	}

	switch msg.Op {
	case "playerUpdate":
		return backend.PlayerUpdate{
			GuildID:  guildID,
			Time:     time.UnixMilli(msg.State.Time),
			Position: time.Duration(msg.State.Position) * time.Millisecond,
		}, nil

	case "stats":
		ev := backend.Stats{
			Players:        msg.Players,
			PlayingPlayers: msg.PlayingPlayers,
			Uptime:         time.Duration(msg.Uptime) * time.Millisecond,
			Memory: backend.MemoryStats{
				Free:       msg.Memory.Free,
				Used:       msg.Memory.Used,
				Allocated:  msg.Memory.Allocated,
				Reservable: msg.Memory.Reservable,
			},
			CPU: backend.CPUStats{
				Cores:       msg.CPU.Cores,
				SystemLoad:  msg.CPU.SystemLoad,
				ProcessLoad: msg.CPU.LavalinkLoad,
			},
		}
		if msg.FrameStats != nil {
			ev.FrameStats = &backend.FrameStats{
				Sent:    msg.FrameStats.Sent,
				Nulled:  msg.FrameStats.Nulled,
				Deficit: msg.FrameStats.Deficit,
			}
		}
		return ev, nil

	case "event":
		return parseEvent(guildID, &msg)

	default:
		return nil, nil
	}
}

func parseEvent(guildID types.GuildID, msg *serverMessage) (backend.Event, error) {
	switch msg.Type {
	case "TrackStartEvent":
		return backend.TrackStart{GuildID: guildID, Track: msg.Track}, nil

	case "TrackEndEvent":
		return backend.TrackFinish{GuildID: guildID, Track: msg.Track, Reason: msg.Reason}, nil

	case "TrackExceptionEvent":
		ev := backend.TrackException{GuildID: guildID, Track: msg.Track, Error: msg.Error}
		if msg.Exception != nil {
			if ev.Error == "" {
				ev.Error = msg.Exception.Message
			}
			ev.Severity = msg.Exception.Severity
			ev.Cause = msg.Exception.Cause
		}
		return ev, nil

	case "TrackStuckEvent":
		return backend.TrackStuck{
			GuildID:   guildID,
			Track:     msg.Track,
			Threshold: time.Duration(msg.ThresholdMS) * time.Millisecond,
		}, nil

	case "WebSocketClosedEvent":
		return backend.WebSocketClosed{
			GuildID:  guildID,
			Code:     msg.Code,
			Reason:   msg.Reason,
			ByRemote: msg.ByRemote,
		}, nil

	case "PlayerDestroyedEvent":
		return backend.PlayerDestroyed{GuildID: guildID, Cleanup: msg.Cleanup}, nil

	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
}

func durationMillis(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d / time.Millisecond)
}
