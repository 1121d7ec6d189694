package channel

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlersRunInOrder(t *testing.T) {
	b := NewBus()
	var got []string
	b.On(StoryRendered, func(args ...any) { got = append(got, "first:"+args[0].(string)) })
	off := b.On(StoryRendered, func(args ...any) { got = append(got, "second") })
	b.On(StoryChanged, func(args ...any) { got = append(got, "other") })

	b.Emit(StoryRendered, "a--b")
	off()
	b.Emit(StoryRendered, "c--d")

	assert.Equal(t, []string{"first:a--b", "second", "first:c--d"}, got)
}

func TestSubscribersReceiveEmittedEvents(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Emit(StoryRendered, "a--b")
	b.Dispatch(Event{Type: SetCurrentStory, Args: []any{map[string]any{"storyId": "x--y"}}})

	ev := <-ch
	assert.Equal(t, Event{Type: StoryRendered, Args: []any{"a--b"}}, ev)
	select {
	case extra := <-ch:
		t.Fatalf("dispatched events must not be echoed to transports, got %v", extra)
	default:
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe()
	for i := 0; i < 150; i++ {
		b.Emit(StoryRendered, i)
	}
	assert.Len(t, ch, 100)
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)
}

func TestDecode(t *testing.T) {
	t.Run("typed payload", func(t *testing.T) {
		var p SelectionPayload
		require.NoError(t, Decode(SelectionPayload{StoryID: "a--b", ViewMode: "docs"}, &p))
		assert.Equal(t, "docs", p.ViewMode)

		var q SelectionPayload
		require.NoError(t, Decode(&SelectionPayload{StoryID: "c--d"}, &q))
		assert.Equal(t, "c--d", q.StoryID)
	})

	t.Run("json payload", func(t *testing.T) {
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(`{"type":"updateStoryArgs","args":[{"storyId":"a--b","updatedArgs":{"count":3}}]}`), &ev))
		assert.True(t, IsInbound(ev.Type))

		var p ArgsPayload
		require.NoError(t, Decode(ev.Args[0], &p))
		assert.Equal(t, "a--b", p.StoryID)
		assert.Equal(t, float64(3), p.UpdatedArgs["count"])
	})

	t.Run("reset names", func(t *testing.T) {
		var p ResetArgsPayload
		require.NoError(t, Decode(map[string]any{"storyId": "a--b", "argNames": []any{"foo"}}, &p))
		assert.Equal(t, []string{"foo"}, p.ArgNames)
	})
}

func TestEnvelopeJSON(t *testing.T) {
	data, err := json.Marshal(Event{Type: StoryRendered, Args: []any{"a--b"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"storyRendered","args":["a--b"]}`, string(data))
	assert.False(t, IsInbound(StoryRendered))
}
