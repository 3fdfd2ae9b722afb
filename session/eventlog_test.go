package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/layer-3/tonauth/core"
)

func TestEventLogEvictsOldest(t *testing.T) {
	log := NewEventLog(3)
	for _, addr := range []string{"a", "b", "c", "d", "e"} {
		log.Append(core.ConnectionEvent{Type: core.EventConnected, Address: addr})
	}

	events := log.Events()
	assert.Equal(t, 3, log.Len())
	assert.Equal(t, []string{"c", "d", "e"}, []string{events[0].Address, events[1].Address, events[2].Address})
}

func TestEventLogDefaultSize(t *testing.T) {
	log := NewEventLog(0)
	for range DefaultEventLogSize + 10 {
		log.Append(core.ConnectionEvent{Type: core.EventDisconnected})
	}
	assert.Equal(t, DefaultEventLogSize, log.Len())
}

func TestEventLogCopies(t *testing.T) {
	log := NewEventLog(2)
	log.Append(core.ConnectionEvent{Address: "a"})

	events := log.Events()
	events[0].Address = "mutated"
	assert.Equal(t, "a", log.Events()[0].Address)
}
