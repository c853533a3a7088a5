package projection

import (
	"salon-sync/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestTimeline_OptimisticThenEcho_ReplacedInPlace(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()

	// Given an empty room where the salon sends "Hello" at t0
	timeline.AddOptimistic(domain.Message{ClientID: "c-1", RoomID: 7, SenderType: domain.SenderSalon, Text: "Hello", SentAt: t0})

	// When the server echoes it one second later without the client id
	outcome := timeline.Reconcile(domain.Message{ID: 42, RoomID: 7, SenderType: domain.SenderSalon, Text: "Hello", SentAt: t0.Add(time.Second)})

	// Then the timeline has one entry carrying the authoritative id
	req.True(outcome.Replaced)
	req.Equal(MatchHeuristic, outcome.Match)
	req.Equal("c-1", outcome.Previous.Key())
	messages := timeline.Snapshot(7)
	req.Len(messages, 1)
	req.Equal(int64(42), messages[0].ID)
	req.Equal("c-1", messages[0].ClientID)
}

func TestTimeline_ClientIDMatchWinsOverHeuristic(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()

	// Given two identical provisional sends
	timeline.AddOptimistic(domain.Message{ClientID: "c-1", RoomID: 7, SenderType: domain.SenderUser, Text: "ok", SentAt: t0})
	timeline.AddOptimistic(domain.Message{ClientID: "c-2", RoomID: 7, SenderType: domain.SenderUser, Text: "ok", SentAt: t0})

	// When the echo of the second one carries its correlation id
	outcome := timeline.Reconcile(domain.Message{ID: 9, ClientID: "c-2", RoomID: 7, SenderType: domain.SenderUser, Text: "ok", SentAt: t0})

	// Then the second entry is the one promoted
	req.Equal(MatchClientID, outcome.Match)
	req.Equal(1, outcome.Index)
	messages := timeline.Snapshot(7)
	req.True(messages[0].IsProvisional())
	req.Equal(int64(9), messages[1].ID)
}

func TestTimeline_DistinctTextsInWindow_BothKept(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()

	timeline.AddOptimistic(domain.Message{ClientID: "c-1", RoomID: 7, SenderType: domain.SenderUser, Text: "Hello", SentAt: t0})
	outcome := timeline.Reconcile(domain.Message{ID: 1, RoomID: 7, SenderType: domain.SenderUser, Text: "Hello again", SentAt: t0.Add(time.Second)})

	req.False(outcome.Replaced)
	req.Len(timeline.Snapshot(7), 2)
}

func TestTimeline_HeuristicRules(t *testing.T) {
	local := domain.Message{ClientID: "c-1", RoomID: 7, SenderType: domain.SenderUser, Text: "Hi", SentAt: t0}
	tests := []struct {
		name    string
		inbound domain.Message
		merged  bool
	}{
		{"same text within window", domain.Message{ID: 1, RoomID: 7, SenderType: domain.SenderUser, Text: "Hi", SentAt: t0.Add(4 * time.Second)}, true},
		{"echo stamped before local clock", domain.Message{ID: 1, RoomID: 7, SenderType: domain.SenderUser, Text: "Hi", SentAt: t0.Add(-2 * time.Second)}, true},
		{"window is exclusive", domain.Message{ID: 1, RoomID: 7, SenderType: domain.SenderUser, Text: "Hi", SentAt: t0.Add(DedupWindow)}, false},
		{"other sender type", domain.Message{ID: 1, RoomID: 7, SenderType: domain.SenderSalon, Text: "Hi", SentAt: t0}, false},
		{"other room", domain.Message{ID: 1, RoomID: 8, SenderType: domain.SenderUser, Text: "Hi", SentAt: t0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timeline := NewTimeline()
			timeline.AddOptimistic(local)
			outcome := timeline.Reconcile(tt.inbound)
			require.Equal(t, tt.merged, outcome.Replaced)
		})
	}
}

func TestTimeline_TwoAuthoritativeMessagesNeverMerged(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()

	// Given a customer who really sent "ok" twice in a row
	timeline.Reconcile(domain.Message{ID: 1, RoomID: 7, SenderType: domain.SenderUser, Text: "ok", SentAt: t0})
	timeline.Reconcile(domain.Message{ID: 2, RoomID: 7, SenderType: domain.SenderUser, Text: "ok", SentAt: t0.Add(time.Second)})

	req.Len(timeline.Snapshot(7), 2)
}

func TestTimeline_WithConfirmedMerge_CollapsesConfirmedDuplicates(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline(WithConfirmedMerge())

	// Given a salon "ok" already confirmed by the server
	timeline.Reconcile(domain.Message{ID: 10, RoomID: 7, SenderType: domain.SenderSalon, Text: "ok", SentAt: t0})

	// When another confirmed "ok" arrives one second later
	outcome := timeline.Reconcile(domain.Message{ID: 11, RoomID: 7, SenderType: domain.SenderSalon, Text: "ok", SentAt: t0.Add(time.Second)})

	// Then both collapse into one entry carrying the latest id
	req.True(outcome.Replaced)
	req.Equal(MatchHeuristic, outcome.Match)
	messages := timeline.Snapshot(7)
	req.Len(messages, 1)
	req.Equal(int64(11), messages[0].ID)
}

func TestTimeline_WithWindow(t *testing.T) {
	timeline := NewTimeline(WithWindow(time.Second))
	timeline.AddOptimistic(domain.Message{ClientID: "c-1", RoomID: 7, SenderType: domain.SenderUser, Text: "Hi", SentAt: t0})

	outcome := timeline.Reconcile(domain.Message{ID: 1, RoomID: 7, SenderType: domain.SenderUser, Text: "Hi", SentAt: t0.Add(2 * time.Second)})

	require.False(t, outcome.Replaced)
}

func TestTimeline_Redelivery_SameID(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	m := domain.Message{ID: 5, RoomID: 7, SenderType: domain.SenderUser, Text: "again", SentAt: t0}

	timeline.Reconcile(m)
	outcome := timeline.Reconcile(m)

	req.Equal(MatchID, outcome.Match)
	req.Len(timeline.Snapshot(7), 1)
}

func TestTimeline_Load_KeepsPendingSends(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	timeline.AddOptimistic(domain.Message{ClientID: "c-1", RoomID: 7, SenderType: domain.SenderUser, Text: "pending", SentAt: t0})

	timeline.Load(7, []domain.Message{{ID: 1, RoomID: 7, SenderType: domain.SenderSalon, Text: "old", SentAt: t0.Add(-time.Hour)}})

	messages := timeline.Snapshot(7)
	req.Len(messages, 2)
	req.Equal("old", messages[0].Text)
	req.Equal("pending", messages[1].Text)
}

func TestTimeline_RemoveAndMarkRead(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	timeline.Load(7, []domain.Message{
		{ID: 1, RoomID: 7, SenderType: domain.SenderSalon, Text: "a", SentAt: t0},
		{ID: 2, RoomID: 7, SenderType: domain.SenderUser, Text: "b", SentAt: t0},
	})
	timeline.AddOptimistic(domain.Message{ClientID: "c-1", RoomID: 7, SenderType: domain.SenderUser, Text: "c", SentAt: t0})

	req.True(timeline.Remove(7, "c-1"))
	req.False(timeline.Remove(7, "c-1"))
	req.Equal(1, timeline.MarkRead(7, domain.SenderSalon))
	req.Equal(0, timeline.MarkRead(7, domain.SenderSalon))

	messages := timeline.Snapshot(7)
	req.Len(messages, 2)
	req.True(messages[0].Read)
	req.False(messages[1].Read)
}

func TestTimeline_SnapshotIsACopy(t *testing.T) {
	timeline := NewTimeline()
	timeline.Reconcile(domain.Message{ID: 1, RoomID: 7, Text: "a"})

	snapshot := timeline.Snapshot(7)
	snapshot[0].Text = "changed"

	require.Equal(t, "a", timeline.Snapshot(7)[0].Text)
}

func TestRoomList_SortedByLastMessage(t *testing.T) {
	req := require.New(t)
	rooms := NewRoomList()
	rooms.Load([]domain.ChatRoom{
		{ID: 1, LastMessageAt: t0},
		{ID: 2, LastMessageAt: t0.Add(time.Minute)},
	})

	// When room 1 gets a new message and an unknown room appears
	rooms.Touch(domain.Message{RoomID: 1, Text: "new", SentAt: t0.Add(time.Hour)})
	rooms.Touch(domain.Message{RoomID: 3, Text: "first", SentAt: t0.Add(2 * time.Minute)})

	list := rooms.Rooms()
	req.Len(list, 3)
	req.Equal([]domain.RoomID{1, 3, 2}, []domain.RoomID{list[0].ID, list[1].ID, list[2].ID})
	req.Equal("new", list[0].LastMessage)
}
