package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// ResultSuccess labels a successful operation.
	ResultSuccess = "success"
	// ResultFailure labels a failed operation.
	ResultFailure = "failure"
)

var (
	// ProductsCreated is a Prometheus counter for tracking the total number of confirmed product creations.
	ProductsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_created_total",
		Help: "The total number of products created on chain",
	})

	// ProductCreateFailures counts failed creations by reason.
	ProductCreateFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_create_failures_total",
		Help: "The total number of failed product creations",
	}, []string{"reason"})

	// ProductLoads counts full product list reloads by result.
	ProductLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_loads_total",
		Help: "The total number of product list reloads",
	}, []string{"result"})

	// ImageUploads counts storage uploads by result.
	ImageUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "image_uploads_total",
		Help: "The total number of image uploads to content-addressed storage",
	}, []string{"result"})

	// WalletConnects counts explicit wallet connection attempts by result.
	WalletConnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_connects_total",
		Help: "The total number of wallet connection attempts",
	}, []string{"result"})

	// WorkspacesEvicted counts browser sessions released for being idle or over the cap.
	WorkspacesEvicted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workspaces_evicted_total",
		Help: "The total number of browser sessions released",
	}, []string{"reason"})

	// TransactionConfirmation observes the time between submitting a transaction and its confirmation.
	TransactionConfirmation = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transaction_confirmation_seconds",
		Help:    "Time spent waiting for transaction confirmation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30, 60, 120},
	})
)

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
