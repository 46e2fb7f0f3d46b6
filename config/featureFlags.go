package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// SettlementRedisLockEnabled controls the best-effort cross-instance redis lock
// taken around shift settlement. The MySQL advisory lock inside the settlement
// transaction is always held regardless of this flag.
//
// Set via env:
// - SETTLEMENT_REDIS_LOCK=0 (or false/no) to disable. Default enabled.
func SettlementRedisLockEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("SETTLEMENT_REDIS_LOCK")))
	if v == "" {
		return true
	}
	return !(v == "0" || v == "false" || v == "no" || v == "n")
}

// SettlementTimeout is the transaction-scope timeout for one settlement call.
// Batch settlement of ~100 packs is expected to finish well inside it.
//
// Set via env:
// - SETTLEMENT_TIMEOUT_SECONDS (default 60)
func SettlementTimeout() time.Duration {
	secs := 60
	if v := strings.TrimSpace(os.Getenv("SETTLEMENT_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			secs = n
		}
	}
	return time.Duration(secs) * time.Second
}
