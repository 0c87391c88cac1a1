package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/0xPolygon/polygon-gateway/gateway/message"
	"github.com/0xPolygon/polygon-gateway/helper/hex"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func TestWebhookHandler(t *testing.T) {
	t.Parallel()

	var received WebhookRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		if received.Payload == hex.EncodeToHex([]byte("reject")) {
			http.Error(w, "payload rejected", http.StatusUnprocessableEntity)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	handler := NewInboundHandler(&InboundHandler{URL: srv.URL}, hclog.NewNullLogger())
	domain := types.EVMDomain(10)

	msg := message.NewPayload([]byte("accept"))
	require.NoError(t, handler.Handle(context.Background(), domain, msg))

	require.Equal(t, domain, received.Domain)
	require.Equal(t, msg.Hash(), received.Hash)
	require.Equal(t, "payload", received.Kind)
	require.Equal(t, hex.EncodeToHex([]byte("accept")), received.Payload)

	err := handler.Handle(context.Background(), domain, message.NewPayload([]byte("reject")))
	require.ErrorContains(t, err, "responded 422: payload rejected")
}

func TestWebhookHandler_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	handler := NewInboundHandler(&InboundHandler{URL: url}, hclog.NewNullLogger())

	err := handler.Handle(context.Background(), types.EVMDomain(1), message.NewPayload([]byte{1}))
	require.ErrorContains(t, err, "inbound handler request failed")
}

func TestNewInboundHandler_DefaultsToLogHandler(t *testing.T) {
	t.Parallel()

	handler := NewInboundHandler(&InboundHandler{}, hclog.NewNullLogger())
	require.IsType(t, &logHandler{}, handler)

	require.NoError(t, handler.Handle(context.Background(), types.HomeDomain, message.NewPayload(nil)))
}
