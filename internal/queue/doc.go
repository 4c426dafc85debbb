// Package queue provides the durable classification sync queue.
//
// Items move pending -> processing and end at completed or failed. A retryable
// failure schedules the item back to pending with an incremented retry count
// and a future next_retry_at, so transient classifier outages never lose work.
package queue
