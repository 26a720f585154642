// Package metrics holds the Prometheus collectors shared by the engines and the API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Purchases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicles_shop_purchases_total",
			Help: "Shop purchase attempts by currency and outcome",
		},
		[]string{"currency", "result"},
	)
	MissionCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicles_mission_completions_total",
			Help: "Missions completed",
		},
		[]string{"mission"},
	)
	AchievementUnlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicles_achievement_unlocks_total",
			Help: "Achievement tiers unlocked",
		},
		[]string{"tier"},
	)
	RoleGrantFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chronicles_role_grant_failures_total",
			Help: "Purchases settled whose role could not be granted",
		},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicles_http_requests_total",
			Help: "HTTP requests served by route and status",
		},
		[]string{"method", "route", "status"},
	)
	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicles_rate_limited_total",
			Help: "HTTP requests rejected by the rate limiter",
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(Purchases)
	prometheus.MustRegister(MissionCompletions)
	prometheus.MustRegister(AchievementUnlocks)
	prometheus.MustRegister(RoleGrantFailures)
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(RateLimited)
}
