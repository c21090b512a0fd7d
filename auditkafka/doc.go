// Package auditkafka publishes authcore audit events to a Kafka topic as
// JSON, keyed by actor ID so one account's events stay ordered within a
// partition.
//
// [Sink.Record] blocks until the broker acknowledges or the write timeout
// passes. Wrap it with authcore.NewAsyncAuditSink on request paths.
package auditkafka
