package state

import (
	"path/filepath"
	"testing"

	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

var (
	domainA = types.EVMDomain(1)
	domainB = types.EVMDomain(137)
)

func newTestState(t *testing.T) *State {
	t.Helper()

	state, err := NewState(filepath.Join(t.TempDir(), "gateway.db"), hclog.NewNullLogger())
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, state.Close())
	})

	return state
}

func TestState_ReopenKeepsData(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gateway.db")

	state, err := NewState(path, hclog.NewNullLogger())
	require.NoError(t, err)
	require.NoError(t, state.RegistryStore.SetRouters(domainA, []types.RouterID{"gmp", "evm"}, nil))
	require.NoError(t, state.Close())

	state, err = NewState(path, hclog.NewNullLogger())
	require.NoError(t, err)

	defer state.Close()

	routers, err := state.RegistryStore.GetRouters(domainA, nil)
	require.NoError(t, err)
	require.Equal(t, []types.RouterID{"gmp", "evm"}, routers)
}

func TestState_UpdateRollsBackOnError(t *testing.T) {
	t.Parallel()

	state := newTestState(t)

	err := state.Update(func(tx *bolt.Tx) error {
		if err := state.RegistryStore.SetRouters(domainA, []types.RouterID{"gmp"}, tx); err != nil {
			return err
		}

		if _, err := state.QueueStore.NextNonce(tx); err != nil {
			return err
		}

		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	routers, err := state.RegistryStore.GetRouters(domainA, nil)
	require.NoError(t, err)
	require.Nil(t, routers)

	nonce, err := state.QueueStore.LastNonce(nil)
	require.NoError(t, err)
	require.Zero(t, nonce)
}

func TestRegistryStore_Routers(t *testing.T) {
	t.Parallel()

	state := newTestState(t)

	require.NoError(t, state.RegistryStore.SetRouters(domainA, []types.RouterID{"gmp"}, nil))
	require.NoError(t, state.RegistryStore.SetRouters(domainB, []types.RouterID{"evm", "xcm"}, nil))
	require.NoError(t, state.RegistryStore.SetRouters(domainA, []types.RouterID{"gmp", "evm"}, nil))

	all, err := state.RegistryStore.AllRouters(nil)
	require.NoError(t, err)
	require.Equal(t, map[types.Domain][]types.RouterID{
		domainA: {"gmp", "evm"},
		domainB: {"evm", "xcm"},
	}, all)

	routers, err := state.RegistryStore.GetRouters(types.HomeDomain, nil)
	require.NoError(t, err)
	require.Empty(t, routers)
}

func TestRegistryStore_Relayers(t *testing.T) {
	t.Parallel()

	state := newTestState(t)
	relayer := types.StringToAddress("0x01")

	allowed, err := state.RegistryStore.IsRelayer(domainA, relayer, nil)
	require.NoError(t, err)
	require.False(t, allowed)

	added, err := state.RegistryStore.AddRelayer(domainA, relayer, nil)
	require.NoError(t, err)
	require.True(t, added)

	added, err = state.RegistryStore.AddRelayer(domainA, relayer, nil)
	require.NoError(t, err)
	require.False(t, added)

	// allowlists are partitioned per domain
	allowed, err = state.RegistryStore.IsRelayer(domainB, relayer, nil)
	require.NoError(t, err)
	require.False(t, allowed)

	relayers, err := state.RegistryStore.GetRelayers(domainA, nil)
	require.NoError(t, err)
	require.Equal(t, []types.Address{relayer}, relayers)

	removed, err := state.RegistryStore.RemoveRelayer(domainA, relayer, nil)
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = state.RegistryStore.RemoveRelayer(domainA, relayer, nil)
	require.NoError(t, err)
	require.False(t, removed)

	removed, err = state.RegistryStore.RemoveRelayer(domainB, relayer, nil)
	require.NoError(t, err)
	require.False(t, removed)
}

func TestRegistryStore_HookAndForwarding(t *testing.T) {
	t.Parallel()

	state := newTestState(t)
	hook := types.StringToAddress("0xabcd")

	_, err := state.RegistryStore.GetHookAddress(domainA, nil)
	require.ErrorIs(t, err, ErrHookAddressNotFound)

	require.NoError(t, state.RegistryStore.SetHookAddress(domainA, hook, nil))

	got, err := state.RegistryStore.GetHookAddress(domainA, nil)
	require.NoError(t, err)
	require.Equal(t, hook, got)

	info, err := state.RegistryStore.GetForwardInfo("xcm", nil)
	require.NoError(t, err)
	require.Nil(t, info)

	expected := &ForwardInfo{Domain: domainB, Contract: types.StringToAddress("0x1234")}
	require.NoError(t, state.RegistryStore.SetForwardInfo("xcm", expected, nil))

	info, err = state.RegistryStore.GetForwardInfo("xcm", nil)
	require.NoError(t, err)
	require.Equal(t, expected, info)

	require.NoError(t, state.RegistryStore.RemoveForwardInfo("xcm", nil))

	info, err = state.RegistryStore.GetForwardInfo("xcm", nil)
	require.NoError(t, err)
	require.Nil(t, info)
}

func TestPendingMatch_Confirm(t *testing.T) {
	t.Parallel()

	match := &PendingMatch{}

	require.True(t, match.Confirm("xcm"))
	require.True(t, match.Confirm("evm"))
	require.True(t, match.Confirm("gmp"))
	require.False(t, match.Confirm("evm"))

	require.Equal(t, []types.RouterID{"evm", "gmp", "xcm"}, match.Confirmations)
	require.True(t, match.HasConfirmed("gmp"))
	require.False(t, match.HasConfirmed("other"))

	require.True(t, match.Covers([]types.RouterID{"gmp", "xcm"}))
	require.False(t, match.Covers([]types.RouterID{"gmp", "other"}))
	require.False(t, match.Covers(nil))
}

func TestInboundStore_PendingMatches(t *testing.T) {
	t.Parallel()

	state := newTestState(t)
	hash := types.StringToHash("0x01")

	match, err := state.InboundStore.GetPendingMatch(domainA, hash, nil)
	require.NoError(t, err)
	require.Nil(t, match)

	first := &PendingMatch{Domain: domainA, Hash: hash, Body: []byte{0x1}}
	first.Confirm("gmp")

	second := &PendingMatch{Domain: domainB, Hash: hash}
	second.Confirm("evm")

	require.NoError(t, state.InboundStore.PutPendingMatch(first, nil))
	require.NoError(t, state.InboundStore.PutPendingMatch(second, nil))

	match, err = state.InboundStore.GetPendingMatch(domainA, hash, nil)
	require.NoError(t, err)
	require.Equal(t, first, match)

	matches, err := state.InboundStore.ListPendingMatches(domainB, nil)
	require.NoError(t, err)
	require.Equal(t, []*PendingMatch{second}, matches)

	existed, err := state.InboundStore.DeletePendingMatch(domainA, hash, nil)
	require.NoError(t, err)
	require.True(t, existed)

	existed, err = state.InboundStore.DeletePendingMatch(domainA, hash, nil)
	require.NoError(t, err)
	require.False(t, existed)

	matches, err = state.InboundStore.ListPendingMatches(domainA, nil)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestQueueStore_Nonces(t *testing.T) {
	t.Parallel()

	state := newTestState(t)

	for i := 1; i <= 3; i++ {
		nonce, err := state.QueueStore.NextNonce(nil)
		require.NoError(t, err)
		require.Equal(t, types.Nonce(i), nonce)
	}

	last, err := state.QueueStore.LastNonce(nil)
	require.NoError(t, err)
	require.Equal(t, types.Nonce(3), last)
}

func TestQueueStore_QueuedAndFailed(t *testing.T) {
	t.Parallel()

	state := newTestState(t)

	for i := 1; i <= 5; i++ {
		require.NoError(t, state.QueueStore.InsertQueued(&QueueEntry{
			Nonce:   types.Nonce(i),
			Domain:  domainA,
			Message: []byte{byte(i)},
		}, nil))
	}

	err := state.QueueStore.InsertQueued(&QueueEntry{Nonce: 1, Domain: domainA}, nil)
	require.ErrorIs(t, err, ErrEntryExists)

	entries, err := state.QueueStore.ListQueued(2, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, types.Nonce(1), entries[0].Nonce)
	require.Equal(t, types.Nonce(2), entries[1].Nonce)

	require.NoError(t, state.QueueStore.DeleteQueued(1, nil))

	entry, err := state.QueueStore.GetQueued(1, nil)
	require.NoError(t, err)
	require.Nil(t, entry)

	require.NoError(t, state.QueueStore.PutFailed(&FailedQueueEntry{
		Nonce:    1,
		Domain:   domainA,
		Message:  []byte{1},
		Error:    "handler reverted",
		Attempts: 1,
	}, nil))

	failed, err := state.QueueStore.GetFailed(1, nil)
	require.NoError(t, err)
	require.Equal(t, "handler reverted", failed.Error)

	queued, failedCount, err := state.QueueStore.QueueLengths(nil)
	require.NoError(t, err)
	require.Equal(t, 4, queued)
	require.Equal(t, 1, failedCount)

	all, err := state.QueueStore.ListFailed(nil)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, state.QueueStore.DeleteFailed(1, nil))

	failed, err = state.QueueStore.GetFailed(1, nil)
	require.NoError(t, err)
	require.Nil(t, failed)
}

func TestRecoveryStore(t *testing.T) {
	t.Parallel()

	state := newTestState(t)
	hash := types.StringToHash("0xff")

	request, err := state.RecoveryStore.GetRecovery(domainA, hash, "gmp", nil)
	require.NoError(t, err)
	require.Nil(t, request)

	expected := &RecoveryRequest{
		Domain:        domainA,
		Hash:          hash,
		Router:        "gmp",
		Initiator:     types.StringToAddress("0x1"),
		OpenBlock:     100,
		DisputeWindow: 50,
		Status:        RecoveryInitiated,
	}
	require.NoError(t, state.RecoveryStore.PutRecovery(expected, nil))
	require.Equal(t, uint64(150), expected.WindowEnd())

	request, err = state.RecoveryStore.GetRecovery(domainA, hash, "gmp", nil)
	require.NoError(t, err)
	require.Equal(t, expected, request)

	// same hash recovered for a different router is a separate request
	request, err = state.RecoveryStore.GetRecovery(domainA, hash, "evm", nil)
	require.NoError(t, err)
	require.Nil(t, request)

	requests, err := state.RecoveryStore.ListRecoveries(domainA, nil)
	require.NoError(t, err)
	require.Len(t, requests, 1)

	requests, err = state.RecoveryStore.ListRecoveries(domainB, nil)
	require.NoError(t, err)
	require.Empty(t, requests)
}
