package node

import (
	"time"

	"dhtnode/logger"
)

// BootstrapEndpoints are the well-known DHT routers this node seeds its
// routing table from, per spec.md §6.
var BootstrapEndpoints = []string{
	"router.bittorrent.com:6881",
	"router.utorrent.com:6881",
	"dht.transmissionbt.com:6881",
}

// Config collects every tunable named in spec.md §5: the node's identity
// parameters, the bootstrap list, and the timing constants, which the
// spec allows implementations to expose as configuration rather than
// bury as unconditional literals. The Node itself never reads the
// process environment; SPEC_FULL.md §10.2 has the CLI wrapper populate
// this struct via viper before constructing the Node.
type Config struct {
	// NodeIDHex, if non-empty, must be 40 lowercase hex characters and
	// fixes the node's identity. Left empty, a random ID is generated.
	NodeIDHex string

	// NodePort, if nonzero, is the UDP port to bind. Left zero, a
	// random port in [1025, 65535] is chosen, with retries on bind
	// failure.
	NodePort uint16

	// BootstrapAddrs overrides BootstrapEndpoints, mostly for tests that
	// don't want to hit the real network.
	BootstrapAddrs []string

	// PendingQueryTimeout is how long an outstanding query is kept in
	// the pending-query map before the maintenance sweep discards it.
	// Default 30s per spec.md §5.
	PendingQueryTimeout time.Duration

	// StaleNodeAge is the max age before a routing table entry is
	// evicted. Default 15m per spec.md §4.2.
	StaleNodeAge time.Duration

	// BucketRefreshIdle is how long a bucket may go without activity
	// before the maintenance loop targets it with a refresh find_node.
	// Default 15m per spec.md §4.4.
	BucketRefreshIdle time.Duration

	// MaintenanceTick is the period of the maintenance loop. Default
	// 60s per spec.md §4.4.
	MaintenanceTick time.Duration

	// ReceiveTimeout bounds how long the receive activity blocks on a
	// single read, so shutdown stays prompt. Default 1s per spec.md §5.
	ReceiveTimeout time.Duration

	// BlockedAddressTTL is how long an address stays in the blocklist
	// after being flagged. Default 24h, matching the TTLCache in
	// original_source/dht_node/dht_node.py.
	BlockedAddressTTL time.Duration

	// BlockedAddressCacheSize bounds the blocklist's memory footprint.
	BlockedAddressCacheSize int

	// EnforceSecureIDs records the BEP 42 node ID / IP binding choice
	// (spec.md §9 open question, see DESIGN.md). It defaults to false and
	// is not read by the node: no BEP 42 check is implemented, so setting
	// it to true changes nothing.
	EnforceSecureIDs bool

	// Logger receives all log output. Defaults to a logrus-backed
	// logger.LogrusLogger if left nil.
	Logger logger.Logger
}

// DefaultConfig returns a Config with every timing constant set to the
// spec's default value.
func DefaultConfig() Config {
	return Config{
		BootstrapAddrs:          append([]string{}, BootstrapEndpoints...),
		PendingQueryTimeout:     30 * time.Second,
		StaleNodeAge:            15 * time.Minute,
		BucketRefreshIdle:       15 * time.Minute,
		MaintenanceTick:         60 * time.Second,
		ReceiveTimeout:          1 * time.Second,
		BlockedAddressTTL:       24 * time.Hour,
		BlockedAddressCacheSize: 1000,
		EnforceSecureIDs:        false,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PendingQueryTimeout == 0 {
		c.PendingQueryTimeout = d.PendingQueryTimeout
	}
	if c.StaleNodeAge == 0 {
		c.StaleNodeAge = d.StaleNodeAge
	}
	if c.BucketRefreshIdle == 0 {
		c.BucketRefreshIdle = d.BucketRefreshIdle
	}
	if c.MaintenanceTick == 0 {
		c.MaintenanceTick = d.MaintenanceTick
	}
	if c.ReceiveTimeout == 0 {
		c.ReceiveTimeout = d.ReceiveTimeout
	}
	if c.BlockedAddressTTL == 0 {
		c.BlockedAddressTTL = d.BlockedAddressTTL
	}
	if c.BlockedAddressCacheSize == 0 {
		c.BlockedAddressCacheSize = d.BlockedAddressCacheSize
	}
	if c.BootstrapAddrs == nil {
		c.BootstrapAddrs = append([]string{}, BootstrapEndpoints...)
	}
	if c.Logger == nil {
		c.Logger = logger.NewLogrusLogger(nil)
	}
	return c
}
