// Package ratelimit bounds request rates per client and endpoint.
//
// Counters are fixed windows keyed by endpoint and client IP. Two backends
// exist: MemoryLimiter for single-process deployments and RedisLimiter for
// shared counters across replicas. Each Rule carries an explicit failure
// policy deciding what happens when the backend itself errors.
package ratelimit
