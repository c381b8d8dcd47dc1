package rediskey

import (
	"fmt"
	"time"
)

const (
	LicensePrefix      = "license"
	LicenseSweepPrefix = "license:sweep"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildSweepLockKey returns "license:sweep:{taskType}:{yyyymmdd}". The day is
// taken in UTC so every replica derives the same key.
func BuildSweepLockKey(taskType string, day time.Time) string {
	return NamespaceKey(LicenseSweepPrefix, fmt.Sprintf("%s:%s", taskType, day.UTC().Format("20060102")))
}
