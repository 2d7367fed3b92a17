package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	// Checkouts is labelled by result: committed, rejected or failed.
	Checkouts     *prometheus.CounterVec
	PriceFallback prometheus.Counter
	// CartMutations is labelled by op: add, update or remove.
	CartMutations   *prometheus.CounterVec
	CartCacheHits   prometheus.Counter
	CartCacheMisses prometheus.Counter
	RequestDuration *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkouts_total",
		Help: "Checkout attempts by result.",
	}, []string{"result"})
	fallback := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_price_fallback_total",
		Help: "Order lines priced at zero because no price could be resolved.",
	})
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_mutations_total",
	}, []string{"op"})
	hits := prometheus.NewCounter(prometheus.CounterOpts{Name: "storefront_cart_cache_hits_total"})
	misses := prometheus.NewCounter(prometheus.CounterOpts{Name: "storefront_cart_cache_misses_total"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_http_request_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	r.MustRegister(checkouts, fallback, mutations, hits, misses, duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Registry{
		reg:             r,
		Checkouts:       checkouts,
		PriceFallback:   fallback,
		CartMutations:   mutations,
		CartCacheHits:   hits,
		CartCacheMisses: misses,
		RequestDuration: duration,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
