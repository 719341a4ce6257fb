package database

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/brickfi/pool-data/internal/config"
)

// BuildConnString renders a pgx connection URL for one database. Pool
// sizing travels in the query string so pgxpool picks it up at parse
// time.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	if cfg.MaxConns > 0 {
		q.Set("pool_max_conns", strconv.Itoa(cfg.MaxConns))
	}
	if cfg.MinConns > 0 {
		q.Set("pool_min_conns", strconv.Itoa(cfg.MinConns))
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?%s",
		cfg.User,
		url.QueryEscape(cfg.Password),
		net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		cfg.Name,
		q.Encode(),
	)
}
