/*
Package monitoring provides Prometheus metrics for the bridge.

# Overview

Every Metrics value owns a private prometheus.Registry, exposed by the status
endpoint at /metrics. Collected series:

  - devbridge_messages_dispatched_total{op}
  - devbridge_messages_sent_total{transport,result}
  - devbridge_decode_errors_total
  - devbridge_connection_state{state}
  - devbridge_connection_events_total{event,transport}
  - devbridge_reconnect_attempts_total
  - devbridge_evals_total{status}, devbridge_eval_duration_seconds
  - devbridge_reloads_total{outcome}, devbridge_reload_duration_seconds
  - devbridge_reload_queue_depth
  - devbridge_status_requests_total{path,status}
  - devbridge_uptime_seconds

A nil *Metrics is never passed around; components that run without metrics
receive NewMetrics() with an unexposed registry.
*/
package monitoring
