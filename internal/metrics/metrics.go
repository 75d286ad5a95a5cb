package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

// Prometheus-style counters (uint64 via atomic)
var (
	msgPersisted    atomic.Uint64
	msgPublished    atomic.Uint64
	publishFailures atomic.Uint64
	queueConnects   atomic.Uint64
	loginSuccess    atomic.Uint64
	loginFailure    atomic.Uint64
	wsConnections   atomic.Int64 // gauge semantics
	wsNotifications atomic.Uint64
)

// Increment helpers
func IncMsgPersisted()   { msgPersisted.Add(1) }
func IncMsgPublished()   { msgPublished.Add(1) }
func IncPublishFailure() { publishFailures.Add(1) }
func IncQueueConnect()   { queueConnects.Add(1) }
func IncLoginSuccess()   { loginSuccess.Add(1) }
func IncLoginFailure()   { loginFailure.Add(1) }
func IncWSConnections()  { wsConnections.Add(1) }
func DecWSConnections()  { wsConnections.Add(-1) }
func IncWSNotification() { wsNotifications.Add(1) }

// Handler exposes metrics in a minimal Prometheus exposition format.
func Handler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	counter(w, "youapp_messages_persisted_total", "Messages durably stored", msgPersisted.Load())
	counter(w, "youapp_messages_published_total", "Messages handed to the queue", msgPublished.Load())
	counter(w, "youapp_queue_publish_failures_total", "Publish attempts that failed after the message was stored", publishFailures.Load())
	counter(w, "youapp_queue_connects_total", "Queue connections established", queueConnects.Load())

	fmt.Fprintf(w, "# HELP youapp_logins_total Login attempts by outcome\n")
	fmt.Fprintf(w, "# TYPE youapp_logins_total counter\n")
	fmt.Fprintf(w, "youapp_logins_total{outcome=\"success\"} %d\n", loginSuccess.Load())
	fmt.Fprintf(w, "youapp_logins_total{outcome=\"failure\"} %d\n", loginFailure.Load())

	fmt.Fprintf(w, "# HELP youapp_ws_connections Open websocket connections\n")
	fmt.Fprintf(w, "# TYPE youapp_ws_connections gauge\n")
	fmt.Fprintf(w, "youapp_ws_connections %d\n", wsConnections.Load())
	counter(w, "youapp_ws_notifications_total", "Messages pushed to websocket clients", wsNotifications.Load())
}

func counter(w http.ResponseWriter, name, help string, v uint64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n", name, v)
}
