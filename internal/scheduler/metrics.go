package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "miniapp_factory_queue_depth",
		Help: "Deployments waiting for a worker",
	})
	workerTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "miniapp_factory_workers_total",
		Help: "Worker VMs known to the fleet",
	})
	deploymentsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniapp_factory_deployments_dispatched_total",
		Help: "Deployments handed to a worker",
	})
	deploymentsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniapp_factory_deployments_completed_total",
		Help: "Deployments that finished both stages",
	})
	vmsProvisioned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniapp_factory_vms_provisioned_total",
		Help: "Worker VMs provisioned by the fleet manager",
	})
	vmsTornDown = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miniapp_factory_vms_torn_down_total",
		Help: "Worker VMs torn down by the fleet manager",
	})
)
