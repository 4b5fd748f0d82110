package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	msg := Message{Type: TypeSessionRecorded, Body: []byte("abc|def")}
	assert.Equal(t, msg, decode(encode(msg)))

	assert.Equal(t, Message{Body: []byte("raw")}, decode("raw"))
}

func TestInMemory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, Message{Type: TypeSessionRecorded, Body: []byte("s1")}))

	select {
	case got := <-msgs:
		assert.Equal(t, TypeSessionRecorded, got.Type)
		assert.Equal(t, "s1", string(got.Body))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	select {
	case _, ok := <-msgs:
		assert.False(t, ok, "channel closes after cancel")
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestNop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var q Queue = Nop{}
	assert.NoError(t, q.Publish(ctx, Message{Type: "x"}))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	cancel()
	_, ok := <-msgs
	assert.False(t, ok)
}
