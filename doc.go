// Package signalbridge connects a vehicle signal broker to NATS.
//
// The broker speaks a gRPC shadow protocol: point reads, job-based writes,
// and a server stream of signal updates, all carrying JSON-encoded
// structpb payloads addressed by slash-delimited wire paths. Applications
// address signals by dotted paths ("Vehicle.Speed"). This module adapts
// between the two worlds and republishes a configured set of signals onto
// NATS subjects.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│            cmd/signalbridge         │  Wiring, lifecycle,
//	│   (config, health, metrics, flags)  │  signal handling
//	└─────────────────────────────────────┘
//	           ↓ runs
//	┌─────────────────────────────────────┐
//	│              bridge                 │  Route table, republish,
//	│   (broker updates → NATS subjects)  │  on-demand reads
//	└─────────────────────────────────────┘
//	       ↓ reads                ↓ publishes
//	┌──────────────┐      ┌──────────────┐
//	│    broker    │      │  natsclient  │
//	│ (gRPC facade │      │ (core NATS + │
//	│  + client)   │      │  JetStream)  │
//	└──────────────┘      └──────────────┘
//	       ↓ encodes/decodes via
//	┌─────────────────────────────────────┐
//	│        codec + wirepath + signal    │  Typed values, coercion,
//	│                                     │  path translation
//	└─────────────────────────────────────┘
//
// Package layout:
//
//   - signal: typed signal values, kinds, replies
//   - wirepath: dotted ↔ slash path translation, payload navigation
//   - codec: wire value encode/decode with exact coercion rules
//   - broker: gRPC facade and client over the shadow protocol
//   - bridge: route table and NATS republisher component
//   - natsclient: managed NATS connection with circuit breaker
//   - config, metric, health, errors, component: ambient infrastructure
package signalbridge
