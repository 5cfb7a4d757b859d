package captcha

import "github.com/prometheus/client_golang/prometheus"

var (
	// challengesIssued counts generated codes by reason: new, refresh, mismatch.
	challengesIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captcha_challenges_issued_total",
			Help: "Captcha codes generated, by reason.",
		},
		[]string{"reason"},
	)

	// verifications counts verification outcomes: match, mismatch, missing.
	verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captcha_verifications_total",
			Help: "Captcha verification attempts, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(challengesIssued, verifications)
}
