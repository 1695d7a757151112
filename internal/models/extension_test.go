package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueState_Valid_EmptyQueueRequiresNilIndex(t *testing.T) {
	assert.True(t, QueueState{}.Valid())

	idx := 0
	assert.False(t, QueueState{CurrentIndex: &idx}.Valid())
}

func TestQueueState_Valid_NonEmptyQueueRequiresIndexInRange(t *testing.T) {
	songs := []Song{{ID: "a"}, {ID: "b"}}

	idx := 1
	assert.True(t, QueueState{Songs: songs, CurrentIndex: &idx}.Valid())

	assert.False(t, QueueState{Songs: songs}.Valid(), "nil index with a non-empty queue is invalid")

	oob := 2
	assert.False(t, QueueState{Songs: songs, CurrentIndex: &oob}.Valid())

	negative := -1
	assert.False(t, QueueState{Songs: songs, CurrentIndex: &negative}.Valid())
}
