package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusSubscribeEmit(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(KindFileSuccess, func(ev Event) {
		got = append(got, ev)
	})

	bus.Emit(FileSuccess{Identifier: "abc"})
	bus.Emit(FileError{Identifier: "abc", Message: "nope"})

	assert.Len(t, got, 1)
	assert.Equal(t, FileSuccess{Identifier: "abc"}, got[0])
}

func TestBusCatchAll(t *testing.T) {
	bus := NewBus()

	var kinds []Kind
	bus.Subscribe(KindAny, func(ev Event) {
		kinds = append(kinds, ev.EventKind())
	})

	bus.Emit(UploadStart{})
	bus.Emit(FileSuccess{Identifier: "x"})
	bus.Emit(Complete{})

	assert.Equal(t, []Kind{KindUploadStart, KindFileSuccess, KindComplete}, kinds)
}

func TestBusKindAndCatchAllBothFire(t *testing.T) {
	bus := NewBus()

	var kindHits, anyHits int
	bus.Subscribe(KindPause, func(Event) { kindHits++ })
	bus.Subscribe(KindAny, func(Event) { anyHits++ })

	bus.Emit(Pause{})

	assert.Equal(t, 1, kindHits)
	assert.Equal(t, 1, anyHits)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()

	var hits int
	sub := bus.Subscribe(KindCancel, func(Event) { hits++ })

	bus.Emit(Cancel{})
	bus.Unsubscribe(sub)
	bus.Emit(Cancel{})

	assert.Equal(t, 1, hits)
}

func TestBusEmitAll(t *testing.T) {
	bus := NewBus()

	var kinds []Kind
	bus.Subscribe(KindAny, func(ev Event) {
		kinds = append(kinds, ev.EventKind())
	})

	bus.EmitAll(
		FileAdded{Identifier: "a"},
		ChunkingStart{Identifier: "a"},
		ChunkingComplete{Identifier: "a"},
	)
	bus.EmitAll()

	assert.Equal(t, []Kind{KindFileAdded, KindChunkingStart, KindChunkingComplete}, kinds)
}

func TestBusReentrantSubscriber(t *testing.T) {
	bus := NewBus()

	var nested int
	bus.Subscribe(KindUploadStart, func(Event) {
		// A handler may subscribe or emit without deadlocking the bus.
		bus.Subscribe(KindComplete, func(Event) { nested++ })
	})

	bus.Emit(UploadStart{})
	bus.Emit(Complete{})

	assert.Equal(t, 1, nested)
}
