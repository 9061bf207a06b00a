// Package shard implements the deterministic mapping from an entity's
// identity and type to a physical placement on a blobstore.Backend. The
// strategy is pure: the same inputs always produce the same shard path,
// across three placement strategies (hash, range, date) plus a
// multi-level directory fan-out.
package shard

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Strategy names recognized in configuration.
const (
	StrategyHash  = "hash"
	StrategyRange = "range"
	StrategyDate  = "date"
)

// DateFormat controls how a date-strategy shard path is rendered.
const (
	DateFormatYear      = "YYYY"
	DateFormatYearMonth = "YYYY-MM"
)

// Config declares which sharding strategy to use and its parameters.
//
// Behavior:
//   - Only one strategy is active at a time, selected by Strategy;
//     fields belonging to the other strategies are ignored.
//   - Zero values resolve to defaults: ShardCount=10, RangeSize=1000,
//     DateFormat=YYYY-MM, ShardLevels=2.
//   - An unrecognized Strategy value falls back to "hash" in New,
//     rather than erroring — a Config is never rejected outright.
type Config struct {
	Strategy    string
	DateFormat  string
	ShardCount  int
	RangeSize   int
	ShardLevels int
}

// resolved returns a copy of c with zero fields replaced by defaults.
func (c Config) resolved() Config {
	if c.ShardCount <= 0 {
		c.ShardCount = 10
	}
	if c.RangeSize <= 0 {
		c.RangeSize = 1000
	}
	if c.DateFormat == "" {
		c.DateFormat = DateFormatYearMonth
	}
	if c.ShardLevels <= 0 {
		c.ShardLevels = 2
	}
	return c
}

// Strategy computes shard paths for a configured placement scheme. It
// holds no mutable state — every method is a pure function of its
// arguments — so a single Strategy is safe to share across goroutines
// without locking.
type Strategy struct {
	cfg Config
}

// New builds a Strategy from cfg.
//
// Parameters:
//   - cfg: the strategy and its parameters; zero fields take the
//     defaults documented on Config, and an unrecognized Strategy
//     falls back to "hash".
//
// Returns a ready-to-use Strategy.
//
// Example:
//
//	s := shard.New(shard.Config{Strategy: shard.StrategyHash, ShardCount: 16})
//	path := s.ShardFor("user-42", time.Time{})
func New(cfg Config) *Strategy {
	cfg = cfg.resolved()
	switch cfg.Strategy {
	case StrategyHash, StrategyRange, StrategyDate:
	default:
		cfg.Strategy = StrategyHash
	}
	return &Strategy{cfg: cfg}
}

// ShardFor computes the shard path for a node identity.
//
// Parameters:
//   - id: the node's id; hash and range strategies derive the path
//     purely from this string.
//   - t: consulted only by the date strategy; a zero Time resolves to
//     the current UTC time at call time, so it's rarely worth passing
//     anything but time.Time{} unless the date strategy needs a
//     specific, reproducible period.
//
// Returns the shard path, a "/"-joined sequence of directory segments.
// The same (id, t) under the same Config always returns the same path.
//
// Thread Safety:
// Safe for concurrent use; Strategy holds no mutable state.
func (s *Strategy) ShardFor(id string, t time.Time) string {
	switch s.cfg.Strategy {
	case StrategyRange:
		return s.rangeShard(id)
	case StrategyDate:
		return s.dateShard(t)
	default:
		return s.hashShard(id)
	}
}

// RelationshipShard computes the shard path for a relationship.
//
// Behavior:
// Under the hash and range strategies the pair (from, to) is combined
// into a single stable key before placement, so the relationship lands
// in the same shard space a node would, rather than needing its own
// strategy. The combined key is order-sensitive: (from, to) and
// (to, from) may place into different shards. Under the date strategy
// the pair is not consulted: the path is the current UTC period at
// call time.
//
// Returns the shard path; under hash and range it is deterministic for
// a given (from, to) under the same Config.
//
// Thread Safety:
// Safe for concurrent use; Strategy holds no mutable state.
func (s *Strategy) RelationshipShard(from, to string) string {
	pair := from + "\x00" + to
	switch s.cfg.Strategy {
	case StrategyRange:
		return s.rangeShard(pair)
	case StrategyDate:
		return s.dateShard(time.Time{})
	default:
		return s.hashShard(pair)
	}
}

// hashShard implements the "hash" strategy: shard = "shard-" +
// (sum of codepoints of id mod shardCount), then fanned out across
// cfg.ShardLevels directory segments. The reduction is mod
// shardCount^shardLevels, not mod shardCount — levels then peels off
// one base-shardCount digit per level, so reducing mod shardCount
// first would zero every digit but the last and collapse the whole
// fan-out to ShardCount leaves instead of the advertised
// ShardCount^ShardLevels.
func (s *Strategy) hashShard(id string) string {
	sum := 0
	for _, r := range id {
		sum += int(r)
	}
	space := intPow(s.cfg.ShardCount, s.cfg.ShardLevels)
	n := sum % space
	if n < 0 {
		n += space
	}
	return s.levels("shard-", n)
}

// intPow returns base^exp for small non-negative exp, clamped to avoid
// overflow for the directory fan-out sizes this package deals in.
func intPow(base, exp int) int {
	if base <= 1 {
		base = 10
	}
	result := 1
	for i := 0; i < exp; i++ {
		if result > 1<<30/base {
			return 1 << 30
		}
		result *= base
	}
	return result
}

// rangeShard implements the "range" strategy: parse id as a base-36
// integer and bucket it into windows of cfg.RangeSize. Ids that don't
// parse as base-36 fall back to a sum-of-codepoints bucket so every id
// still gets a deterministic, valid path.
func (s *Strategy) rangeShard(id string) string {
	n, ok := new(big.Int).SetString(id, 36)
	var bucket int64
	if ok {
		rs := big.NewInt(int64(s.cfg.RangeSize))
		bucket = new(big.Int).Div(n, rs).Int64()
	} else {
		sum := 0
		for _, r := range id {
			sum += int(r)
		}
		bucket = int64(sum / s.cfg.RangeSize)
	}
	return s.levels("range-", int(bucket))
}

// dateShard implements the "date" strategy: format t (or now, if zero)
// as YYYY or YYYY-MM per cfg.DateFormat. Date shards are not further
// fanned out across levels — a calendar period is already a bounded,
// low-cardinality key.
func (s *Strategy) dateShard(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	switch s.cfg.DateFormat {
	case DateFormatYear:
		return strconv.Itoa(t.Year())
	default:
		return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
	}
}

// levels renders n as cfg.ShardLevels directory segments under prefix,
// each segment holding a successive base-cfg.ShardCount digit of n, so
// that numShards^shardLevels leaf directories are reachable in total.
//
// Example: prefix="shard-", n=37, ShardCount=10, ShardLevels=2 yields
// "shard-3/shard-7".
func (s *Strategy) levels(prefix string, n int) string {
	levels := s.cfg.ShardLevels
	base := s.cfg.ShardCount
	if base <= 1 {
		base = 10
	}
	segs := make([]string, levels)
	for i := levels - 1; i >= 0; i-- {
		d := n % base
		if d < 0 {
			d += base
		}
		segs[i] = prefix + strconv.Itoa(d)
		n /= base
	}
	return strings.Join(segs, "/")
}

// Config returns the resolved configuration this Strategy was built
// with — every zero field already replaced by its default.
//
// Useful for diagnostics and for callers that need ShardCount or
// ShardLevels to validate an explicit shard argument against what this
// Strategy would itself produce.
//
// Thread Safety:
// Safe for concurrent use.
func (s *Strategy) Config() Config { return s.cfg }
