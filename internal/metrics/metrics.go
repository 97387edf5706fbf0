package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// MailSend counts provider send calls by outcome ("success" or "failure")
	MailSend = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formlink_mail_send_total",
		Help: "Total number of results emails handed to a mail provider",
	}, []string{"provider", "result"})

	// Submissions counts processed form submissions by delivery status
	Submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "formlink_submissions_total",
		Help: "Total number of form submissions processed",
	}, []string{"status"})

	// RateLimited counts webhook requests rejected by the rate limiter
	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "formlink_rate_limited_total",
		Help: "Total number of webhook requests rejected by the rate limiter",
	})
)

func init() {
	prometheus.MustRegister(MailSend)
	prometheus.MustRegister(Submissions)
	prometheus.MustRegister(RateLimited)
}

// ObserveSend records the outcome of a provider send
func ObserveSend(provider string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	MailSend.WithLabelValues(provider, result).Inc()
}
