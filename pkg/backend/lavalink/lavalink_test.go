package lavalink

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/driftvale/ripple/pkg/backend"
	"github.com/driftvale/ripple/pkg/types"
)

func TestParseMessage_PlayerUpdate(t *testing.T) {
	t.Parallel()

	raw := `{"op":"playerUpdate","guildId":"193","state":{"time":1700000000000,"position":62500}}`
	ev, err := parseMessage([]byte(raw))
	if err != nil {
		t.Fatalf("parseMessage() error = %v", err)
	}
	upd, ok := ev.(backend.PlayerUpdate)
	if !ok {
		t.Fatalf("parseMessage() = %T, want backend.PlayerUpdate", ev)
	}
	if upd.GuildID != types.GuildID(193) {
		t.Errorf("GuildID = %d, want 193", upd.GuildID)
	}
	if want := 62500 * time.Millisecond; upd.Position != want {
		t.Errorf("Position = %v, want %v", upd.Position, want)
	}
	if upd.Time.UnixMilli() != 1700000000000 {
		t.Errorf("Time = %v, want unix milli 1700000000000", upd.Time)
	}
}

func TestParseMessage_Stats(t *testing.T) {
	t.Parallel()

	raw := `{"op":"stats","players":4,"playingPlayers":2,"uptime":360000,
		"memory":{"free":100,"used":200,"allocated":300,"reservable":400},
		"cpu":{"cores":8,"systemLoad":0.25,"lavalinkLoad":0.125},
		"frameStats":{"sent":3000,"nulled":5,"deficit":1}}`
	ev, err := parseMessage([]byte(raw))
	if err != nil {
		t.Fatalf("parseMessage() error = %v", err)
	}
	stats, ok := ev.(backend.Stats)
	if !ok {
		t.Fatalf("parseMessage() = %T, want backend.Stats", ev)
	}
	if stats.Players != 4 || stats.PlayingPlayers != 2 {
		t.Errorf("player counts = %d/%d, want 4/2", stats.Players, stats.PlayingPlayers)
	}
	if want := 6 * time.Minute; stats.Uptime != want {
		t.Errorf("Uptime = %v, want %v", stats.Uptime, want)
	}
	if stats.CPU.Cores != 8 || stats.CPU.ProcessLoad != 0.125 {
		t.Errorf("CPU = %+v, want cores 8, process load 0.125", stats.CPU)
	}
	if stats.FrameStats == nil || stats.FrameStats.Nulled != 5 {
		t.Errorf("FrameStats = %+v, want nulled 5", stats.FrameStats)
	}
}

func TestParseMessage_StatsWithoutFrameStats(t *testing.T) {
	t.Parallel()

	ev, err := parseMessage([]byte(`{"op":"stats","players":1}`))
	if err != nil {
		t.Fatalf("parseMessage() error = %v", err)
	}
	if stats := ev.(backend.Stats); stats.FrameStats != nil {
		t.Errorf("FrameStats = %+v, want nil", stats.FrameStats)
	}
}

func TestParseMessage_TrackEvents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want backend.Event
	}{
		{
			name: "start",
			raw:  `{"op":"event","type":"TrackStartEvent","guildId":"7","track":"QAAA"}`,
			want: backend.TrackStart{GuildID: 7, Track: "QAAA"},
		},
		{
			name: "finish",
			raw:  `{"op":"event","type":"TrackEndEvent","guildId":"7","track":"QAAA","reason":"FINISHED"}`,
			want: backend.TrackFinish{GuildID: 7, Track: "QAAA", Reason: "FINISHED"},
		},
		{
			name: "exception flat error",
			raw:  `{"op":"event","type":"TrackExceptionEvent","guildId":"7","track":"QAAA","error":"boom"}`,
			want: backend.TrackException{GuildID: 7, Track: "QAAA", Error: "boom"},
		},
		{
			name: "exception nested",
			raw: `{"op":"event","type":"TrackExceptionEvent","guildId":"7","track":"QAAA",
				"exception":{"message":"decode failed","severity":"FAULT","cause":"EOF"}}`,
			want: backend.TrackException{GuildID: 7, Track: "QAAA", Error: "decode failed", Severity: "FAULT", Cause: "EOF"},
		},
		{
			name: "stuck",
			raw:  `{"op":"event","type":"TrackStuckEvent","guildId":"7","track":"QAAA","thresholdMs":10000}`,
			want: backend.TrackStuck{GuildID: 7, Track: "QAAA", Threshold: 10 * time.Second},
		},
		{
			name: "socket closed",
			raw:  `{"op":"event","type":"WebSocketClosedEvent","guildId":"7","code":4006,"reason":"session no longer valid","byRemote":true}`,
			want: backend.WebSocketClosed{GuildID: 7, Code: 4006, Reason: "session no longer valid", ByRemote: true},
		},
		{
			name: "player destroyed",
			raw:  `{"op":"event","type":"PlayerDestroyedEvent","guildId":"7","cleanup":true}`,
			want: backend.PlayerDestroyed{GuildID: 7, Cleanup: true},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseMessage([]byte(tc.raw))
			if err != nil {
				t.Fatalf("parseMessage() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("parseMessage() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestParseMessage_UnknownEventType(t *testing.T) {
	t.Parallel()

	_, err := parseMessage([]byte(`{"op":"event","type":"SegmentLoadedEvent","guildId":"7"}`))
	if err == nil {
		t.Fatal("parseMessage() error = nil, want unknown event error")
	}
}

func TestParseMessage_UnknownOpIgnored(t *testing.T) {
	t.Parallel()

	ev, err := parseMessage([]byte(`{"op":"pong"}`))
	if err != nil {
		t.Fatalf("parseMessage() error = %v", err)
	}
	if ev != nil {
		t.Errorf("parseMessage() = %#v, want nil", ev)
	}
}

func TestPlayOp_EndTimeOmittedWhenUnset(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(playOp{Op: "play", GuildID: "7", Track: "QAAA", StartTime: 30000})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, present := fields["endTime"]; present {
		t.Errorf("endTime serialized as %v, want omitted", fields["endTime"])
	}
	if fields["startTime"] != float64(30000) {
		t.Errorf("startTime = %v, want 30000", fields["startTime"])
	}

	end := uint64(45000)
	data, err = json.Marshal(playOp{Op: "play", GuildID: "7", Track: "QAAA", EndTime: &end})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	fields = nil
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if fields["endTime"] != float64(45000) {
		t.Errorf("endTime = %v, want 45000", fields["endTime"])
	}
}

func TestDurationMillis(t *testing.T) {
	t.Parallel()

	if got := durationMillis(-time.Second); got != 0 {
		t.Errorf("durationMillis(-1s) = %d, want 0", got)
	}
	if got := durationMillis(1500 * time.Millisecond); got != 1500 {
		t.Errorf("durationMillis(1.5s) = %d, want 1500", got)
	}
}
