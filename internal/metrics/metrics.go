package metrics

import "expvar"

var (
	AvailabilitySweeps = expvar.NewInt("availability_sweeps")
	LifecycleSweeps    = expvar.NewInt("lifecycle_sweeps")
	SweepErrors        = expvar.NewInt("sweep_errors")
	NotificationsSent  = expvar.NewInt("notifications_sent")
	NotificationErrors = expvar.NewInt("notification_errors")
	CodesReceived      = expvar.NewInt("codes_received")
	RefundsSucceeded   = expvar.NewInt("refunds_succeeded")
	RefundsFailed      = expvar.NewInt("refunds_failed")
	ReconcileHazards   = expvar.NewInt("reconcile_hazards")
)
