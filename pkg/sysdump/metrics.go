// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package sysdump

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	collectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cdiag_sysdump_collection_duration_seconds",
			Help:    "Time taken to collect a complete sysdump",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	collectionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdiag_sysdump_collection_total",
			Help: "Total number of sysdump collection attempts",
		},
		[]string{"status"}, // success or error
	)

	stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cdiag_sysdump_step_duration_seconds",
			Help:    "Time taken by individual collection steps",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"step"},
	)
)
