// Package poller periodically fetches full pool snapshots via the REST
// API to backfill gaps in the realtime stream.
package poller
