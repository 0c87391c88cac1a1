package gateway

import (
	"context"
	"testing"

	"github.com/0xPolygon/polygon-gateway/gateway/events"
	"github.com/0xPolygon/polygon-gateway/gateway/message"
	"github.com/0xPolygon/polygon-gateway/gateway/router"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateway_ReceiveMessageQuorum(t *testing.T) {
	t.Parallel()

	msg := message.NewPayload([]byte("hello"))
	proof := msg.ToProof()

	cases := []struct {
		name  string
		order []types.RouterID
	}{
		{"full first", []types.RouterID{"gmp", "evm", "xcm"}},
		{"full in the middle", []types.RouterID{"evm", "gmp", "xcm"}},
		{"full last", []types.RouterID{"xcm", "evm", "gmp"}},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			env := newTestGateway(t, "gmp", "evm", "xcm")
			_, err := env.gw.SetRouters(admin, domainA, []types.RouterID{"gmp", "evm", "xcm"})
			require.NoError(t, err)

			sub := env.gw.Subscribe()

			for i, id := range c.order {
				submission := proof
				if id == "gmp" {
					submission = msg
				}

				result := env.receive(t, id, domainA, submission)
				require.Equal(t, msg.Hash(), result.Hash)

				if i < len(c.order)-1 {
					require.False(t, result.Submitted())
					require.Len(t, result.Confirmations, i+1)
				} else {
					require.Equal(t, []types.Nonce{1}, result.Nonces)
					require.Empty(t, result.Confirmations)
				}
			}

			entry, err := env.gw.QueuedMessage(1)
			require.NoError(t, err)
			require.Equal(t, domainA, entry.Domain)
			require.Equal(t, msg.Encode(), entry.Message)

			_, err = env.gw.PendingMatch(domainA, msg.Hash())
			require.ErrorIs(t, err, ErrPendingMatchNotFound)

			fired := drain(sub)
			require.Len(t, eventsOfType(fired, events.InboundMessageConfirmed), 3)

			submitted := eventsOfType(fired, events.MessageSubmitted)
			require.Len(t, submitted, 1)
			assert.Equal(t, types.Nonce(1), submitted[0].Nonce)
			assert.Equal(t, msg.Hash(), submitted[0].Hash)

			// nothing is executed until the message is processed
			require.Empty(t, env.handler.handled)
		})
	}
}

func TestGateway_ReceiveMessageDuplicatesDoNotCount(t *testing.T) {
	t.Parallel()

	env := newTestGateway(t, "gmp", "evm")
	_, err := env.gw.SetRouters(admin, domainA, []types.RouterID{"gmp", "evm"})
	require.NoError(t, err)

	msg := message.NewPayload([]byte("dup"))

	env.receive(t, "gmp", domainA, msg)
	result := env.receive(t, "gmp", domainA, msg)
	require.False(t, result.Submitted())
	require.Equal(t, []types.RouterID{"gmp"}, result.Confirmations)

	result = env.receive(t, "evm", domainA, msg.ToProof())
	require.Equal(t, []types.Nonce{1}, result.Nonces)
}

func TestGateway_ReceiveMessageProofsOnlyWaitForBody(t *testing.T) {
	t.Parallel()

	env := newTestGateway(t, "gmp", "evm")
	_, err := env.gw.SetRouters(admin, domainA, []types.RouterID{"gmp", "evm"})
	require.NoError(t, err)

	msg := message.NewPayload([]byte("body comes later"))

	env.receive(t, "gmp", domainA, msg.ToProof())
	result := env.receive(t, "evm", domainA, msg.ToProof())
	require.False(t, result.Submitted())
	require.Equal(t, []types.RouterID{"evm", "gmp"}, result.Confirmations)

	match, err := env.gw.PendingMatch(domainA, msg.Hash())
	require.NoError(t, err)
	require.False(t, match.HasBody())

	// the body completes the quorum even though every router already confirmed
	result = env.receive(t, "gmp", domainA, msg)
	require.Equal(t, []types.Nonce{1}, result.Nonces)
}

func TestGateway_ReceiveMessageSplitsPack(t *testing.T) {
	t.Parallel()

	env := newTestGateway(t, "gmp")
	_, err := env.gw.SetRouters(admin, domainA, []types.RouterID{"gmp"})
	require.NoError(t, err)

	subs := []*message.Message{
		message.NewPayload([]byte("a")),
		message.NewPayload([]byte("b")),
		message.NewPayload([]byte("c")),
	}

	pack := message.Empty()
	for _, sub := range subs {
		require.NoError(t, pack.PackWith(sub))
	}

	result := env.receive(t, "gmp", domainA, pack)
	require.Equal(t, []types.Nonce{1, 2, 3}, result.Nonces)

	for i, sub := range subs {
		entry, err := env.gw.QueuedMessage(types.Nonce(i + 1))
		require.NoError(t, err)
		require.Equal(t, sub.Encode(), entry.Message)
	}

	// nonces keep increasing across submissions
	result = env.receive(t, "gmp", domainA, message.NewPayload([]byte("d")))
	require.Equal(t, []types.Nonce{4}, result.Nonces)

	last, err := env.gw.LastNonce()
	require.NoError(t, err)
	require.Equal(t, types.Nonce(4), last)
}

func TestGateway_ReceiveMessageErrors(t *testing.T) {
	t.Parallel()

	env := newTestGateway(t, "gmp", "evm", "xcm")
	_, err := env.gw.SetRouters(admin, domainA, []types.RouterID{"gmp", "evm"})
	require.NoError(t, err)

	ctx := context.Background()
	raw := message.NewPayload([]byte("x")).Encode()

	_, err = env.gw.ReceiveMessage(ctx, types.ZeroAddress, domainA, "gmp", raw)
	require.ErrorIs(t, err, ErrBadOrigin)

	_, err = env.gw.ReceiveMessage(ctx, stranger, domainA, "gmp", raw)
	require.ErrorIs(t, err, ErrUnauthorizedRelayer)

	// the relayer allow-list is per domain
	_, err = env.gw.ReceiveMessage(ctx, relayer, types.EVMDomain(5), "gmp", raw)
	require.ErrorIs(t, err, ErrUnauthorizedRelayer)

	_, err = env.gw.ReceiveMessage(ctx, relayer, domainA, "xcm", raw)
	require.ErrorIs(t, err, ErrUnknownRouter)

	_, err = env.gw.ReceiveMessage(ctx, relayer, domainA, "gmp", nil)
	require.ErrorIs(t, err, router.ErrInvalidEnvelope)

	_, err = env.gw.ReceiveMessage(ctx, relayer, domainA, "gmp", []byte{0xc0})
	require.ErrorIs(t, err, message.ErrInvalidEncoding)

	require.NoError(t, env.gw.RemoveRelayer(admin, domainA, relayer))

	_, err = env.gw.ReceiveMessage(ctx, relayer, domainA, "gmp", raw)
	require.ErrorIs(t, err, ErrUnauthorizedRelayer)

	// rejected submissions leave no trace
	matches, err := env.gw.PendingMatches(domainA)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestGateway_ReceiveMessageForwarded(t *testing.T) {
	t.Parallel()

	env := newTestGateway(t, "gmp", "xcm")
	_, err := env.gw.SetRouters(admin, domainA, []types.RouterID{"gmp", "xcm"})
	require.NoError(t, err)

	relayContract := types.StringToAddress("0xf0")
	msg := message.NewPayload([]byte("via relay chain"))

	forwarded, err := msg.ToProof().TryWrapForward(domainB, relayContract)
	require.NoError(t, err)

	ctx := context.Background()

	// a router without forwarding info rejects forwarded messages
	_, err = env.gw.ReceiveMessage(ctx, relayer, domainA, "xcm", forwarded.Encode())
	require.ErrorIs(t, err, ErrForwardInfoMismatch)

	require.NoError(t, env.gw.SetRouterForwarding(admin, "xcm", domainB, types.StringToAddress("0xf1")))

	_, err = env.gw.ReceiveMessage(ctx, relayer, domainA, "xcm", forwarded.Encode())
	require.ErrorIs(t, err, ErrForwardInfoMismatch)

	require.NoError(t, env.gw.SetRouterForwarding(admin, "xcm", domainB, relayContract))

	// a forwarded router rejects direct messages
	_, err = env.gw.ReceiveMessage(ctx, relayer, domainA, "xcm", msg.ToProof().Encode())
	require.ErrorIs(t, err, ErrForwardInfoMismatch)

	result := env.receive(t, "xcm", domainA, forwarded)
	require.Equal(t, msg.Hash(), result.Hash)
	require.Equal(t, []types.RouterID{"xcm"}, result.Confirmations)

	result = env.receive(t, "gmp", domainA, msg)
	require.Equal(t, []types.Nonce{1}, result.Nonces)

	info, err := env.gw.RouterForwarding("xcm")
	require.NoError(t, err)
	require.Equal(t, relayContract, info.Contract)

	require.NoError(t, env.gw.RemoveRouterForwarding(admin, "xcm"))

	info, err = env.gw.RouterForwarding("xcm")
	require.NoError(t, err)
	require.Nil(t, info)
}
