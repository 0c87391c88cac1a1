package gateway

import (
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/armon/go-metrics"
)

const (
	// gatewayMetricsPrefix is a gateway-related metrics prefix
	gatewayMetricsPrefix = "gateway"
)

func routerLabels(domain types.Domain, router types.RouterID) []metrics.Label {
	return []metrics.Label{
		{Name: "domain", Value: domain.String()},
		{Name: "router", Value: string(router)},
	}
}

// updateSendMetrics counts one outbound delivery through the router
func updateSendMetrics(domain types.Domain, router types.RouterID, proof bool, err error) {
	labels := routerLabels(domain, router)

	if err != nil {
		metrics.IncrCounterWithLabels([]string{gatewayMetricsPrefix, "send_failures"}, 1, labels)

		return
	}

	if proof {
		metrics.IncrCounterWithLabels([]string{gatewayMetricsPrefix, "proofs_sent"}, 1, labels)
	} else {
		metrics.IncrCounterWithLabels([]string{gatewayMetricsPrefix, "messages_sent"}, 1, labels)
	}
}

// updateInboundMetrics counts one accepted inbound submission
func updateInboundMetrics(domain types.Domain, router types.RouterID, submitted int) {
	metrics.IncrCounterWithLabels([]string{gatewayMetricsPrefix, "inbound_confirmations"}, 1,
		routerLabels(domain, router))

	if submitted > 0 {
		metrics.IncrCounter([]string{gatewayMetricsPrefix, "messages_submitted"}, float32(submitted))
	}
}

// updateExecutionMetrics counts one handler invocation
func updateExecutionMetrics(domain types.Domain, err error) {
	labels := []metrics.Label{{Name: "domain", Value: domain.String()}}

	if err != nil {
		metrics.IncrCounterWithLabels([]string{gatewayMetricsPrefix, "execution_failure"}, 1, labels)
	} else {
		metrics.IncrCounterWithLabels([]string{gatewayMetricsPrefix, "execution_success"}, 1, labels)
	}
}

// updateQueueMetrics sets the queue length gauges
func updateQueueMetrics(queued, failed int) {
	metrics.SetGauge([]string{gatewayMetricsPrefix, "queue_length"}, float32(queued))
	metrics.SetGauge([]string{gatewayMetricsPrefix, "failed_queue_length"}, float32(failed))
}
