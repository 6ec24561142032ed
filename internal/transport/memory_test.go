package transport

import (
	"context"
	"testing"

	"github.com/paxgov/citizenry/internal/government"
	"github.com/paxgov/citizenry/internal/promise"
	"github.com/stretchr/testify/require"
)

func TestSendDeliversToRegisteredHandler(t *testing.T) {
	net := NewNetwork()
	var gotFrom government.ID
	net.Register("b", func(ctx context.Context, from government.ID, req Request) *Response {
		gotFrom = from
		return &Response{Message: Message{Method: MethodPing, Promise: req.Message.Promise}}
	})

	resp, err := net.NewClient("a").Send(context.Background(), "b", Request{Message: Message{Method: MethodPing, Promise: promise.Promise{Government: 1, Round: 2}}})
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.Equal(t, government.ID("a"), gotFrom)
	require.Equal(t, promise.Promise{Government: 1, Round: 2}, resp.Message.Promise)
}

func TestSendToUnregisteredPeerIsNilResponse(t *testing.T) {
	net := NewNetwork()
	resp, err := net.NewClient("a").Send(context.Background(), "ghost", Request{})
	require.NoError(t, err)
	require.Nil(t, resp)
}

func TestSendAfterUnregisterIsNilResponse(t *testing.T) {
	net := NewNetwork()
	net.Register("b", func(ctx context.Context, from government.ID, req Request) *Response {
		return &Response{}
	})
	net.Unregister("b")
	resp, err := net.NewClient("a").Send(context.Background(), "b", Request{})
	require.NoError(t, err)
	require.Nil(t, resp)
}

func TestPartitionBlocksOneDirectionOnly(t *testing.T) {
	net := NewNetwork()
	net.Register("b", func(ctx context.Context, from government.ID, req Request) *Response {
		return &Response{}
	})
	net.Register("a", func(ctx context.Context, from government.ID, req Request) *Response {
		return &Response{}
	})
	net.Partition("a", "b")

	resp, err := net.NewClient("a").Send(context.Background(), "b", Request{})
	require.NoError(t, err)
	require.Nil(t, resp, "a->b is partitioned")

	resp, err = net.NewClient("b").Send(context.Background(), "a", Request{})
	require.NoError(t, err)
	require.NotNil(t, resp, "b->a is not partitioned")
}

func TestHealRestoresDeliveryAfterPartition(t *testing.T) {
	net := NewNetwork()
	net.Register("b", func(ctx context.Context, from government.ID, req Request) *Response {
		return &Response{}
	})
	net.Partition("a", "b")
	net.Heal("a", "b")

	resp, err := net.NewClient("a").Send(context.Background(), "b", Request{})
	require.NoError(t, err)
	require.NotNil(t, resp)
}

func TestUnreachableSynthesizesNullResponse(t *testing.T) {
	resp := Unreachable()
	require.Equal(t, MethodUnreachable, resp.Message.Method)
	require.True(t, resp.Message.Promise.IsZero())
}
