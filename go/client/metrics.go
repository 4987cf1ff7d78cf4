// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "marmo"
	metricsSubsystem = "relayer"
)

// Metrics collects the counters of a relayer.
type Metrics struct {
	// Submitted counts relay transactions accepted by the ledger.
	Submitted prometheus.Counter
	// Rejected counts relay transactions the ledger refused to process.
	Rejected prometheus.Counter
	// Succeeded counts relayed intents whose call succeeded.
	Succeeded prometheus.Counter
	// InnerFailures counts relayed intents whose call failed.
	InnerFailures prometheus.Counter
	// Faulted counts relay transactions reverted by the wallet, by reason.
	Faulted *prometheus.CounterVec
	// GasUsed sums up the gas used by relay transactions.
	GasUsed prometheus.Counter
}

// NewMetrics creates the relayer metrics and registers them with the given
// registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Submitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "submitted_total",
			Help:      "Relay transactions accepted by the ledger",
		}),
		Rejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "rejected_total",
			Help:      "Relay transactions rejected by the ledger",
		}),
		Succeeded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "succeeded_total",
			Help:      "Relayed intents with a successful call",
		}),
		InnerFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "inner_failures_total",
			Help:      "Relayed intents with a failed call",
		}),
		Faulted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "faulted_total",
			Help:      "Relay transactions reverted by the wallet, by reason",
		}, []string{"reason"}),
		GasUsed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "gas_used_total",
			Help:      "Gas used by relay transactions",
		}),
	}
}
