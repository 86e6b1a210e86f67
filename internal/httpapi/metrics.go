package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_active_connections",
		Help: "Active chat websocket connections",
	})
	wsMessagesIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_ws_commands_total",
		Help: "Websocket commands received",
	})
	signatureRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_upload_signatures_total",
		Help: "Upload credentials issued",
	})
	messagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "Messages accepted by the send path",
	})
)
