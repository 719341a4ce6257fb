// Package router parses realtime envelopes and routes them to the
// batch writers.
//
// The router:
//   - Consumes envelopes from the realtime client
//   - Decodes payloads and converts wire units to internal units
//     (decimal USDC → micro-USDC, percent → basis points)
//   - Fans out to per-kind growable buffers consumed by writers
//   - Forwards pool lifecycle notifications to the Pool Registry
package router
