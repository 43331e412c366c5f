package metrics_fx

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"

	"storefront/internal/metrics"
	"storefront/pkg/middleware"
)

var Module = fx.Provide(provideRegistry, providePaymentMetrics, provideHTTPMetrics)

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func providePaymentMetrics(reg *prometheus.Registry) *metrics.PaymentMetrics {
	return metrics.NewPaymentMetrics(reg)
}

func provideHTTPMetrics(reg *prometheus.Registry) *middleware.HTTPMetrics {
	return middleware.NewHTTPMetrics(reg)
}
