package domain

import (
	"fmt"
	"time"
)

// PartitionKey identifies the time window a derived record set is bucketed
// under. Keys map to fixed window durations.
type PartitionKey string

const (
	PartitionHour  PartitionKey = "hour"
	PartitionDay   PartitionKey = "day"
	PartitionWeek  PartitionKey = "week"
	PartitionMonth PartitionKey = "month"
)

// PartitionKeys lists every valid key in window order.
var PartitionKeys = []PartitionKey{PartitionHour, PartitionDay, PartitionWeek, PartitionMonth}

var partitionWindows = map[PartitionKey]time.Duration{
	PartitionHour:  time.Hour,
	PartitionDay:   24 * time.Hour,
	PartitionWeek:  7 * 24 * time.Hour,
	PartitionMonth: 30 * 24 * time.Hour,
}

// ParsePartitionKey validates a request string against the enumerated keys.
func ParsePartitionKey(s string) (PartitionKey, error) {
	key := PartitionKey(s)
	if _, ok := partitionWindows[key]; !ok {
		return "", fmt.Errorf("unknown partition key %q", s)
	}
	return key, nil
}

// Window returns the fixed window duration for the key. Unknown keys return
// zero; callers are expected to hold a parsed key.
func (k PartitionKey) Window() time.Duration {
	return partitionWindows[k]
}
