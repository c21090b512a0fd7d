// Package audit queues audit events and hands them to a sink on a single
// background goroutine.
//
// Events are delivered in the order they were emitted. A Dispatcher either
// drops on a full buffer or blocks the emitter until space frees up, the
// caller's context is canceled, or the dispatcher closes. Sink panics are
// recovered and counted; they never reach the emitting request.
//
// Which events exist and when they are recorded is decided by the authcore
// Service, not here.
package audit
