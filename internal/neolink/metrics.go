package neolink

import (
	"errors"

	"github.com/entropin/neolink/pkg/bc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neolink",
		Name:      "connects_total",
		Help:      "number of established camera connections",
	}, []string{"camera"})
	loginFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neolink",
		Name:      "login_failures_total",
		Help:      "number of failed logins by reason",
	}, []string{"camera", "reason"})
	mediaUnits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neolink",
		Name:      "media_units_total",
		Help:      "number of received media units by kind",
	}, []string{"camera", "kind"})
	mediaBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neolink",
		Name:      "media_bytes_total",
		Help:      "media payload bytes received",
	}, []string{"camera"})
	cameraUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "neolink",
		Name:      "camera_up",
		Help:      "number of camera streams currently streaming",
	}, []string{"camera"})
)

func loginReason(err error) string {
	switch {
	case errors.Is(err, bc.ErrAuthFailed):
		return "auth"
	case errors.Is(err, bc.ErrTimeout):
		return "timeout"
	case errors.Is(err, bc.ErrDisconnected):
		return "disconnected"
	case errors.Is(err, bc.ErrUnexpectedReply):
		return "unexpected_reply"
	}
	return "other"
}
