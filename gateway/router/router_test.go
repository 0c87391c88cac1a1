package router

import (
	"context"
	"strings"
	"testing"

	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/jsonrpc"
	"github.com/umbracle/ethgo/wallet"
)

var (
	testDomain      = types.EVMDomain(1)
	gmpGateway      = types.StringToAddress("0x1111111111111111111111111111111111111111")
	remoteContract  = types.StringToAddress("0xABCDEF0000000000000000000000000000000A0B")
	remoteContract2 = types.StringToAddress("0x2222222222222222222222222222222222222222")
)

type dummyTxRelayer struct {
	mock.Mock
}

func (d *dummyTxRelayer) Call(ctx context.Context, from ethgo.Address, to ethgo.Address,
	input []byte) (string, error) {
	args := d.Called(ctx, from, to, input)

	return args.String(0), args.Error(1)
}

func (d *dummyTxRelayer) SendTransaction(ctx context.Context, transaction *ethgo.Transaction,
	key ethgo.Key) (*ethgo.Receipt, error) {
	args := d.Called(ctx, transaction, key)

	return args.Get(0).(*ethgo.Receipt), args.Error(1) //nolint:forcetypeassert
}

func (d *dummyTxRelayer) SendTransactionLocal(ctx context.Context, txn *ethgo.Transaction) (*ethgo.Receipt, error) {
	args := d.Called(ctx, txn)

	return args.Get(0).(*ethgo.Receipt), args.Error(1) //nolint:forcetypeassert
}

func (d *dummyTxRelayer) Client() *jsonrpc.Client {
	return nil
}

type dummyTransactor struct {
	mock.Mock
}

func (d *dummyTransactor) Transact(ctx context.Context, envelope []byte) (string, error) {
	args := d.Called(ctx, envelope)

	return args.String(0), args.Error(1)
}

func newTestGMPRouter(t *testing.T, backend *Backend) *GMPRouter {
	t.Helper()

	router, err := NewGMPRouter("gmp", map[string]interface{}{
		"gateway":   gmpGateway.String(),
		"chains":    map[string]interface{}{"evm:1": "ethereum"},
		"contracts": map[string]interface{}{"evm:1": remoteContract.String()},
	}, backend, hclog.NewNullLogger())
	require.NoError(t, err)

	return router
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	gmp := newTestGMPRouter(t, &Backend{})
	evm, err := NewEVMRouter("evm", nil, &Backend{}, hclog.NewNullLogger())
	require.NoError(t, err)

	registry, err := NewRegistry(gmp, evm)
	require.NoError(t, err)
	require.Equal(t, []types.RouterID{"evm", "gmp"}, registry.IDs())

	got, ok := registry.Get("gmp")
	require.True(t, ok)
	require.Equal(t, gmp, got)

	_, ok = registry.Get("other")
	require.False(t, ok)

	_, err = NewRegistry(gmp, gmp)
	require.ErrorIs(t, err, ErrDuplicateRouter)
}

func TestNewRouter_UnsupportedType(t *testing.T) {
	t.Parallel()

	_, err := NewRouter(&Config{ID: "x", Type: "carrier-pigeon"}, hclog.NewNullLogger())
	require.ErrorIs(t, err, ErrUnsupportedType)

	_, err = NewRouter(&Config{Type: TypeGMP}, hclog.NewNullLogger())
	require.Error(t, err)
}

func TestGMPRouter_Send(t *testing.T) {
	t.Parallel()

	key, err := wallet.GenerateKey()
	require.NoError(t, err)

	relayer := &dummyTxRelayer{}
	relayer.On("SendTransaction", mock.Anything, mock.Anything, key).
		Return(&ethgo.Receipt{Status: 1}, nil).Once()

	router := newTestGMPRouter(t, &Backend{Relayer: relayer, Key: key})
	payload := []byte{0x1, 0x2, 0x3}

	require.NoError(t, router.Send(context.Background(), testDomain, payload))
	relayer.AssertExpectations(t)

	txn, ok := relayer.Calls[0].Arguments.Get(1).(*ethgo.Transaction)
	require.True(t, ok)
	require.Equal(t, ethgo.Address(gmpGateway), *txn.To)

	decoded, err := gmpCallContractMethod.Inputs.Decode(txn.Input[4:])
	require.NoError(t, err)

	args, ok := decoded.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "ethereum", args["destinationChain"])
	require.Equal(t, payload, args["payload"])

	// full lowercase hex with 0x prefix, never abbreviated
	contractAddress, ok := args["contractAddress"].(string)
	require.True(t, ok)
	require.Equal(t, "0x"+strings.ToLower("ABCDEF0000000000000000000000000000000A0B"), contractAddress)
	require.Len(t, contractAddress, 42)
}

func TestGMPRouter_SendLocalAccountAndErrors(t *testing.T) {
	t.Parallel()

	relayer := &dummyTxRelayer{}
	relayer.On("SendTransactionLocal", mock.Anything, mock.Anything).
		Return((*ethgo.Receipt)(nil), assert.AnError).Once()

	router := newTestGMPRouter(t, &Backend{Relayer: relayer})

	err := router.Send(context.Background(), testDomain, []byte{1})
	require.ErrorIs(t, err, assert.AnError)

	err = router.Send(context.Background(), types.EVMDomain(5), []byte{1})
	require.ErrorIs(t, err, ErrDomainNotSupported)

	relayer.AssertExpectations(t)
}

func TestGMPRouter_Receive(t *testing.T) {
	t.Parallel()

	router := newTestGMPRouter(t, &Backend{})

	valid := func() *GMPEnvelope {
		return &GMPEnvelope{
			Caller:        ethgo.Address(gmpGateway),
			SourceChain:   "ethereum",
			SourceAddress: remoteContract.String(),
			Payload:       []byte("message"),
		}
	}

	cases := []struct {
		name   string
		modify func(e *GMPEnvelope)
		err    error
	}{
		{"valid", func(e *GMPEnvelope) {}, nil},
		{"caller mismatch", func(e *GMPEnvelope) { e.Caller = ethgo.Address(remoteContract2) }, ErrContractCallerMismatch},
		{"source chain too long", func(e *GMPEnvelope) { e.SourceChain = strings.Repeat("a", 129) }, ErrSourceChainTooLong},
		{"short source address", func(e *GMPEnvelope) { e.SourceAddress = "0x1234" }, ErrInvalidSourceAddress},
		{"non hex source address", func(e *GMPEnvelope) { e.SourceAddress = "not-an-address" }, ErrInvalidSourceAddress},
		{"source chain mismatch", func(e *GMPEnvelope) { e.SourceChain = "polygon" }, ErrSourceChainMismatch},
		{"source address mismatch", func(e *GMPEnvelope) {
			e.SourceAddress = remoteContract2.String()
		}, ErrSourceAddressMismatch},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			envelope := valid()
			c.modify(envelope)

			raw, err := envelope.EncodeAbi()
			require.NoError(t, err)

			payload, err := router.Receive(testDomain, raw)
			if c.err != nil {
				require.ErrorIs(t, err, c.err)
				require.Nil(t, payload)
			} else {
				require.NoError(t, err)
				require.Equal(t, []byte("message"), payload)
			}
		})
	}

	_, err := router.Receive(testDomain, []byte{0x1, 0x2})
	require.ErrorIs(t, err, ErrInvalidEnvelope)
}

func TestEVMRouter_SendAndReceive(t *testing.T) {
	t.Parallel()

	key, err := wallet.GenerateKey()
	require.NoError(t, err)

	relayer := &dummyTxRelayer{}
	relayer.On("SendTransaction", mock.Anything, mock.Anything, key).
		Return(&ethgo.Receipt{Status: 1}, nil).Once()

	router, err := NewEVMRouter("evm", map[string]interface{}{
		"contracts": map[string]interface{}{"evm:1": remoteContract.String()},
	}, &Backend{Relayer: relayer, Key: key}, hclog.NewNullLogger())
	require.NoError(t, err)

	require.NoError(t, router.Send(context.Background(), testDomain, []byte("hi")))

	txn, ok := relayer.Calls[0].Arguments.Get(1).(*ethgo.Transaction)
	require.True(t, ok)
	require.Equal(t, ethgo.Address(remoteContract), *txn.To)
	require.Equal(t, evmHandleMethod.ID(), txn.Input[:4])

	envelope := &EVMEnvelope{SourceChainID: 1, SourceContract: ethgo.Address(remoteContract), Payload: []byte("hi")}
	raw, err := envelope.EncodeAbi()
	require.NoError(t, err)

	payload, err := router.Receive(testDomain, raw)
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), payload)

	envelope.SourceChainID = 2
	raw, err = envelope.EncodeAbi()
	require.NoError(t, err)

	_, err = router.Receive(testDomain, raw)
	require.ErrorIs(t, err, ErrSourceChainMismatch)

	envelope.SourceChainID = 1
	envelope.SourceContract = ethgo.Address(remoteContract2)
	raw, err = envelope.EncodeAbi()
	require.NoError(t, err)

	_, err = router.Receive(testDomain, raw)
	require.ErrorIs(t, err, ErrSourceAddressMismatch)
}

func TestEVMRouter_RejectsHomeDomain(t *testing.T) {
	t.Parallel()

	_, err := NewEVMRouter("evm", map[string]interface{}{
		"contracts": map[string]interface{}{"home": remoteContract.String()},
	}, &Backend{}, hclog.NewNullLogger())
	require.ErrorIs(t, err, ErrDomainNotSupported)
}

func TestXCMRouter_SendAndReceive(t *testing.T) {
	t.Parallel()

	transactor := &dummyTransactor{}
	transactor.On("Transact", mock.Anything, mock.Anything).Return("0x01", nil).Once()

	router, err := NewXCMRouter("xcm", map[string]interface{}{
		"contracts": map[string]interface{}{"evm:1": remoteContract.String()},
		"gas_limit": "50000",
	}, transactor, hclog.NewNullLogger())
	require.NoError(t, err)

	require.NoError(t, router.Send(context.Background(), testDomain, []byte("xcm")))
	transactor.AssertExpectations(t)

	raw, ok := transactor.Calls[0].Arguments.Get(1).([]byte)
	require.True(t, ok)

	var sent XCMEnvelope
	require.NoError(t, sent.UnmarshalRLP(raw))
	require.Equal(t, XCMEnvelope{
		ChainID:  1,
		Contract: remoteContract,
		GasLimit: 50000,
		Payload:  []byte("xcm"),
	}, sent)

	// inbound envelopes carry the origin contract
	payload, err := router.Receive(testDomain, raw)
	require.NoError(t, err)
	require.Equal(t, []byte("xcm"), payload)

	sent.Contract = remoteContract2
	_, err = router.Receive(testDomain, sent.MarshalRLPTo(nil))
	require.ErrorIs(t, err, ErrSourceAddressMismatch)

	_, err = router.Receive(testDomain, []byte{0xc0})
	require.ErrorIs(t, err, ErrInvalidEnvelope)
}
