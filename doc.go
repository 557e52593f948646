// Package fetchkit orchestrates client-side data access: it owns the full
// lifecycle of a declarative HTTP request pipeline or a live socket feed,
// shielding callers from duplicate in-flight work, stale responses and
// transient network failures.
//
//   - Debounced fetches with a zero-delay first attempt
//   - Cancellation of superseded attempts (last-issued-wins by identifier)
//   - Retries with exponential backoff (100ms doubling, 5s cap)
//   - Socket state machine with linear reconnect backoff and a pending
//     outbound queue drained on open
//   - Explicit Activate/Deactivate lifecycle; teardown stops everything
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - One controller per logical data source, one mode per controller
//   - Failures never escape the controller; they become published state
//   - Pluggable Transport / Dialer / Logger / metrics collectors
//
// Typical HTTP usage:
//
//	ctrl := fetchkit.New(
//	    fetchkit.WithURL("https://api.example.com/items"),
//	    fetchkit.WithRetry(2),
//	    fetchkit.WithDebounce(300*time.Millisecond),
//	)
//	ctrl.Activate()
//	defer ctrl.Deactivate()
//	// ... ctrl.Data(), ctrl.Loading(), ctrl.Err(), ctrl.Refetch()
//
// Typical socket usage:
//
//	ctrl := fetchkit.New(
//	    fetchkit.WithSocketURL("wss://feed.example.com/live"),
//	    fetchkit.WithRetry(3), // reconnect budget is 2x retry
//	)
//	ctrl.Activate()
//	ctrl.SendMessage(map[string]string{"op": "subscribe"}) // queued until open
//
// The library avoids opinionated logging: provide a Logger (e.g. via
// WithSimpleLogger or NewZerologLogger) to observe attempt and connection
// events without noise.
package fetchkit
