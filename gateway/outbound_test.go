package gateway

import (
	"context"
	"testing"

	"github.com/0xPolygon/polygon-gateway/gateway/events"
	"github.com/0xPolygon/polygon-gateway/gateway/message"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateway_HandleSplitsFullAndProofs(t *testing.T) {
	t.Parallel()

	env := newTestGateway(t, "gmp", "evm", "xcm")
	_, err := env.gw.SetRouters(admin, domainA, []types.RouterID{"gmp", "evm", "xcm"})
	require.NoError(t, err)

	sub := env.gw.Subscribe(events.MessageSent)
	msg := message.NewPayload([]byte("transfer"))

	require.NoError(t, env.gw.Handle(context.Background(), sender, domainA, msg))

	// the first configured router carries the full message
	full := env.routers["gmp"].sentMessages(t)
	require.Len(t, full, 1)
	require.True(t, msg.Equal(full[0]))

	for _, id := range []types.RouterID{"evm", "xcm"} {
		proofs := env.routers[id].sentMessages(t)
		require.Len(t, proofs, 1)
		require.Equal(t, message.KindProof, proofs[0].Kind)
		require.Equal(t, msg.Hash(), proofs[0].Proof)
	}

	sent := drain(sub)
	require.Len(t, sent, 3)
	assert.False(t, sent[0].Proof)
	assert.True(t, sent[1].Proof)
	assert.Equal(t, msg.Hash(), sent[2].Hash)
}

func TestGateway_HandleErrors(t *testing.T) {
	t.Parallel()

	env := newTestGateway(t, "gmp")

	err := env.gw.Handle(context.Background(), sender, domainA, message.NewPayload([]byte{1}))
	require.ErrorIs(t, err, ErrRouterConfigurationNotFound)

	err = env.gw.Handle(context.Background(), types.ZeroAddress, domainA, message.NewPayload([]byte{1}))
	require.ErrorIs(t, err, ErrBadOrigin)

	err = env.gw.Handle(context.Background(), sender, types.Domain{Kind: types.DomainEVM}, message.NewPayload([]byte{1}))
	require.ErrorIs(t, err, ErrInvalidDomain)
}

func TestGateway_HandleAggregatesRouterFailures(t *testing.T) {
	t.Parallel()

	env := newTestGateway(t, "gmp", "evm", "xcm")
	_, err := env.gw.SetRouters(admin, domainA, []types.RouterID{"gmp", "evm", "xcm"})
	require.NoError(t, err)

	env.routers["evm"].sendErr = assert.AnError

	err = env.gw.Handle(context.Background(), sender, domainA, message.NewPayload([]byte("x")))
	require.ErrorIs(t, err, assert.AnError)
	require.ErrorContains(t, err, "router evm")

	// the other sends were issued regardless
	require.Len(t, env.routers["gmp"].sentMessages(t), 1)
	require.Len(t, env.routers["xcm"].sentMessages(t), 1)
}

func TestGateway_HandleWrapsForwardedRouters(t *testing.T) {
	t.Parallel()

	env := newTestGateway(t, "gmp", "xcm")
	_, err := env.gw.SetRouters(admin, domainA, []types.RouterID{"gmp", "xcm"})
	require.NoError(t, err)

	relayContract := types.StringToAddress("0xf0")
	require.NoError(t, env.gw.SetRouterForwarding(admin, "xcm", domainB, relayContract))

	msg := message.NewPayload([]byte("forward me"))
	require.NoError(t, env.gw.Handle(context.Background(), sender, domainA, msg))

	sent := env.routers["xcm"].sentMessages(t)
	require.Len(t, sent, 1)

	fwd, err := sent[0].UnwrapForwarded()
	require.NoError(t, err)
	require.Equal(t, domainB, fwd.Domain)
	require.Equal(t, relayContract, fwd.Contract)
	// the proof hash is computed on the unwrapped message
	require.True(t, message.NewProof(msg.Hash()).Equal(fwd.Message))

	require.True(t, msg.Equal(env.routers["gmp"].sentMessages(t)[0]))
}

func TestGateway_Batch(t *testing.T) {
	t.Parallel()

	env := newTestGateway(t, "gmp", "evm")
	_, err := env.gw.SetRouters(admin, domainA, []types.RouterID{"gmp", "evm"})
	require.NoError(t, err)
	_, err = env.gw.SetRouters(admin, domainB, []types.RouterID{"evm"})
	require.NoError(t, err)

	ctx := context.Background()

	require.ErrorIs(t, env.gw.EndBatchMessage(ctx, sender), ErrBatchNotStarted)
	require.NoError(t, env.gw.StartBatchMessage(sender))
	require.ErrorIs(t, env.gw.StartBatchMessage(sender), ErrBatchAlreadyStarted)
	require.True(t, env.gw.IsBatchOpen(sender))

	first := message.NewPayload([]byte("first"))
	second := message.NewPayload([]byte("second"))
	other := message.NewPayload([]byte("other domain"))

	require.NoError(t, env.gw.Handle(ctx, sender, domainB, other))
	require.NoError(t, env.gw.Handle(ctx, sender, domainA, first))
	require.NoError(t, env.gw.Handle(ctx, sender, domainA, second))

	// nothing is sent while the window is open
	require.Empty(t, env.routers["gmp"].sentMessages(t))
	require.Empty(t, env.routers["evm"].sentMessages(t))

	// other senders are not affected by the window
	require.NoError(t, env.gw.Handle(ctx, stranger, domainA, message.NewPayload([]byte("direct"))))
	require.Len(t, env.routers["gmp"].sentMessages(t), 1)

	require.NoError(t, env.gw.EndBatchMessage(ctx, sender))
	require.False(t, env.gw.IsBatchOpen(sender))

	expectedPack := message.Empty()
	require.NoError(t, expectedPack.PackWith(first))
	require.NoError(t, expectedPack.PackWith(second))

	gmp := env.routers["gmp"].sentMessages(t)
	require.Len(t, gmp, 2)
	require.True(t, expectedPack.Equal(gmp[1]))

	// domains are dispatched in first-use order, a pack of one is sent as its element
	evm := env.routers["evm"].sent
	require.Len(t, evm, 3)
	require.Equal(t, domainB, evm[1].domain)
	require.Equal(t, other.Encode(), evm[1].payload)
	require.Equal(t, domainA, evm[2].domain)

	proof, err := message.Decode(evm[2].payload)
	require.NoError(t, err)
	require.Equal(t, expectedPack.Hash(), proof.Proof)
}

func TestGateway_BatchPackFull(t *testing.T) {
	t.Parallel()

	env := newTestGateway(t, "gmp")
	_, err := env.gw.SetRouters(admin, domainA, []types.RouterID{"gmp"})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, env.gw.StartBatchMessage(sender))

	for i := 0; i < message.MaxPacked; i++ {
		require.NoError(t, env.gw.Handle(ctx, sender, domainA, message.NewPayload([]byte{byte(i)})))
	}

	err = env.gw.Handle(ctx, sender, domainA, message.NewPayload([]byte("overflow")))
	require.ErrorIs(t, err, message.ErrPackFull)

	err = env.gw.Handle(ctx, sender, domainA, message.Empty())
	require.ErrorIs(t, err, message.ErrNestedPack)

	require.NoError(t, env.gw.EndBatchMessage(ctx, sender))

	sent := env.routers["gmp"].sentMessages(t)
	require.Len(t, sent, 1)
	require.Len(t, sent[0].Submessages(), message.MaxPacked)
}
