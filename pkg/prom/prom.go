package prom

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	xhttp "github.com/stockflow/stockflow/pkg/http"
	"github.com/stockflow/stockflow/pkg/logger"
)

const (
	SystemSales    = "sales"
	SystemPayments = "payments"
)

const (
	MetricSalesCreated      = "created_total"
	MetricStkPush           = "stk_push_total"
	MetricStkPushDuration   = "stk_push_duration_seconds"
	MetricCallbacksResolved = "callbacks_resolved_total"
)

var lockCreateMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionHistogram = make(map[string]prometheus.Histogram)

var defaultLabels prometheus.Labels

func Create(host string, env string, nameSpace string) error {
	defaultLabels = make(prometheus.Labels)
	defaultLabels["env"] = env
	defaultLabels["instance"] = host
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounterVec(SystemSales, MetricSalesCreated, []string{"payment_method"}))
	hasError(createCounterVec(SystemPayments, MetricStkPush, []string{"outcome"}))
	hasError(createCounterVec(SystemPayments, MetricCallbacksResolved, []string{"result"}))
	hasError(createHistogram(SystemPayments, MetricStkPushDuration))

	return err
}

func ListenAndServer(port string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "url", url)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func createCounterVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounterVec[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(MetricCollectionCounterVec[subsystem+name])
}

func createHistogram(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionHistogram[subsystem+name] = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
		Buckets:     prometheus.DefBuckets,
	})
	return prometheus.Register(MetricCollectionHistogram[subsystem+name])
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if MetricSystemEnabled == false {
		return
	}
	if v, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func AddHistogram(subsystem, name string, number float64) {
	if MetricSystemEnabled == false {
		return
	}
	if v, ok := MetricCollectionHistogram[subsystem+name]; ok {
		v.Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram not found", "subsystem", subsystem, "name", name)
}

// IncSaleCreated records a persisted sale by payment method.
func IncSaleCreated(paymentMethod string) {
	IncCounterVec(SystemSales, MetricSalesCreated, paymentMethod)
}

// IncStkPush records an STK push attempt by outcome ("accepted" or "rejected").
func IncStkPush(outcome string) {
	IncCounterVec(SystemPayments, MetricStkPush, outcome)
}

// IncCallbackResolved records a resolved provider callback by result
// ("completed", "failed", "duplicate", "unknown_sale").
func IncCallbackResolved(result string) {
	IncCounterVec(SystemPayments, MetricCallbacksResolved, result)
}

// ObserveStkPushDuration records how long the provider took to answer a push.
func ObserveStkPushDuration(seconds float64) {
	AddHistogram(SystemPayments, MetricStkPushDuration, seconds)
}
