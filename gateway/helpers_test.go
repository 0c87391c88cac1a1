package gateway

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/0xPolygon/polygon-gateway/gateway/events"
	"github.com/0xPolygon/polygon-gateway/gateway/message"
	"github.com/0xPolygon/polygon-gateway/gateway/router"
	"github.com/0xPolygon/polygon-gateway/gateway/state"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

var (
	admin    = types.StringToAddress("0xad")
	relayer  = types.StringToAddress("0x7e1a")
	sender   = types.StringToAddress("0x5e")
	stranger = types.StringToAddress("0x99")

	domainA = types.EVMDomain(1)
	domainB = types.EVMDomain(137)
)

type sentPayload struct {
	domain  types.Domain
	payload []byte
}

// testRouter records outbound payloads and accepts raw encoded messages inbound
type testRouter struct {
	id      types.RouterID
	lock    sync.Mutex
	sent    []sentPayload
	sendErr error
}

func (r *testRouter) ID() types.RouterID {
	return r.id
}

func (r *testRouter) Send(_ context.Context, domain types.Domain, payload []byte) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.sendErr != nil {
		return r.sendErr
	}

	r.sent = append(r.sent, sentPayload{domain: domain, payload: payload})

	return nil
}

func (r *testRouter) Receive(_ types.Domain, raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, router.ErrInvalidEnvelope
	}

	return raw, nil
}

func (r *testRouter) sentMessages(t *testing.T) []*message.Message {
	t.Helper()

	r.lock.Lock()
	defer r.lock.Unlock()

	result := make([]*message.Message, 0, len(r.sent))

	for _, s := range r.sent {
		msg, err := message.Decode(s.payload)
		require.NoError(t, err)

		result = append(result, msg)
	}

	return result
}

type testBlocks struct {
	block atomic.Uint64
}

func (b *testBlocks) BlockNumber(context.Context) (uint64, error) {
	return b.block.Load(), nil
}

type handledMessage struct {
	domain types.Domain
	msg    *message.Message
}

// testHandler records executed messages and fails while err is set
type testHandler struct {
	lock    sync.Mutex
	handled []handledMessage
	err     error
}

func (h *testHandler) Handle(_ context.Context, domain types.Domain, msg *message.Message) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.handled = append(h.handled, handledMessage{domain: domain, msg: msg})

	return h.err
}

func (h *testHandler) setErr(err error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.err = err
}

type testEnv struct {
	gw      *Gateway
	routers map[types.RouterID]*testRouter
	blocks  *testBlocks
	handler *testHandler
}

// newTestGateway creates a gateway with the given router adapters, one admin and
// one relayer allowed for domainA and domainB
func newTestGateway(t *testing.T, routerIDs ...types.RouterID) *testEnv {
	t.Helper()

	st, err := state.NewState(filepath.Join(t.TempDir(), "gateway.db"), hclog.NewNullLogger())
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})

	env := &testEnv{
		routers: make(map[types.RouterID]*testRouter, len(routerIDs)),
		blocks:  &testBlocks{},
		handler: &testHandler{},
	}

	adapters := make([]router.Router, 0, len(routerIDs))

	for _, id := range routerIDs {
		r := &testRouter{id: id}
		env.routers[id] = r
		adapters = append(adapters, r)
	}

	registry, err := router.NewRegistry(adapters...)
	require.NoError(t, err)

	config := DefaultConfig()
	config.Admins = []types.Address{admin}
	config.DisputeWindow = 10

	env.gw, err = New(config, st, registry, env.handler, env.blocks, hclog.NewNullLogger())
	require.NoError(t, err)

	t.Cleanup(env.gw.Close)

	require.NoError(t, env.gw.AddRelayer(admin, domainA, relayer))
	require.NoError(t, env.gw.AddRelayer(admin, domainB, relayer))

	return env
}

// receive submits msg through the router, wrapping nothing
func (e *testEnv) receive(t *testing.T, routerID types.RouterID, domain types.Domain,
	msg *message.Message) *ReceiveResult {
	t.Helper()

	result, err := e.gw.ReceiveMessage(context.Background(), relayer, domain, routerID, msg.Encode())
	require.NoError(t, err)

	return result
}

// drain returns every event buffered by the subscription
func drain(sub *events.Subscription) []*events.Event {
	var result []*events.Event

	for {
		select {
		case e := <-sub.Events():
			result = append(result, e)
		default:
			return result
		}
	}
}

func eventsOfType(evs []*events.Event, eventType events.Type) []*events.Event {
	var result []*events.Event

	for _, e := range evs {
		if e.Type == eventType {
			result = append(result, e)
		}
	}

	return result
}
