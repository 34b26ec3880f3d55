package service

import "github.com/prometheus/client_golang/prometheus"

var (
	scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pomelox_identity_scans_total",
			Help: "Identity code verifications by code kind and outcome.",
		},
		[]string{"kind", "result"},
	)

	codesIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pomelox_identity_codes_issued_total",
			Help: "Identity codes issued by kind.",
		},
		[]string{"kind"},
	)

	activityDecodesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pomelox_activity_decodes_total",
			Help: "Activity hash decodes by method; cached hits are counted as \"cache\".",
		},
		[]string{"method"},
	)

	volunteerOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pomelox_volunteer_operations_total",
			Help: "Volunteer check-ins and check-outs by outcome.",
		},
		[]string{"op", "result"},
	)
)

// MustRegisterMetrics registers the service metrics with reg.
func MustRegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(scansTotal, codesIssuedTotal, activityDecodesTotal, volunteerOpsTotal)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
