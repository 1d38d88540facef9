// Package queue is the work-queue engine: the durable batch lease
// protocol (Store), the worker dispatcher with retry/backoff
// (Dispatcher), the dead-letter requeue policy (part of Store plus
// Maintenance), the external-API rate-limit gate (Gate), the periodic
// control-plane clock (Scheduler), and the health monitor with
// self-healing (Monitor). Together these form one coherent state
// machine over a shared relational store; the store/ package supplies
// the concrete (bun-backed) implementation of the Store interface
// defined here.
//
// # Delivery semantics
//
// The engine provides at-least-once delivery. A batch may be dispatched
// more than once if a worker crashes mid-handler and its lease expires
// before completion, or if a reset lease races a slow handler.
// Handlers must be idempotent.
//
// # State machine
//
// A batch moves:
//
//	pending -> processing -> completed              (terminal)
//	pending -> processing -> pending                 (retry, budget left)
//	pending -> processing -> error -> dead-letter     (retries exhausted)
//	processing -> pending                             (reset_expired, lease reclaimed)
//	dead-letter -> pending                             (requeue_dlq, retry_count < 3)
//
// # Concurrency model
//
// Multiple independent Dispatcher processes may run in parallel on
// different hosts; within one Dispatcher.Tick, claimed batches dispatch
// concurrently up to MaxConcurrentJobs and the tick awaits all of them
// (all-settle — no sibling failure cancels another). The Store
// serializes conflicting mutations with row-level locking so
// dispatchers never block each other while claiming.
package queue
