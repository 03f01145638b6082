package snowflake

import (
	"fmt"
	"sync"
	"time"
)

type Snowflake struct {
	Timestamp int64
	WorkerID  int64
	Increment int64
}

const (
	timestampLength int64 = 42                                    // 42
	timestampPos          = 64 - timestampLength                  // 22
	workerLength    int64 = 10                                    // 10
	workerPos             = timestampPos - workerLength           // 12
	incrementLength       = 64 - (timestampLength + workerLength) // 12

	maxWorkerValue    int64 = 1<<workerLength - 1
	maxIncrementValue int64 = 1<<incrementLength - 1
)

var (
	lastIncrement, lastTimestamp int64
	workerID                     int64
	mutex                        sync.Mutex

	now = time.Now
)

func Setup(id int64) error {
	if id < 0 || id > maxWorkerValue {
		return fmt.Errorf("worker ID value must be between 0 and %d, got %d", maxWorkerValue, id)
	}

	mutex.Lock()
	defer mutex.Unlock()

	workerID = id
	return nil
}

// Generate returns a new ID. IDs from one worker are strictly increasing.
func Generate() (int64, error) {
	mutex.Lock()
	defer mutex.Unlock()

	timestamp := now().UnixMilli()
	if timestamp <= lastTimestamp {
		// clock didn't move or went backwards, keep counting on the last millisecond
		timestamp = lastTimestamp
		lastIncrement += 1
		if lastIncrement > maxIncrementValue {
			return 0, fmt.Errorf("increment overflow after increment reached %d", lastIncrement)
		}
	} else {
		lastIncrement = 0
		lastTimestamp = timestamp
	}

	return timestamp<<timestampPos | workerID<<workerPos | lastIncrement, nil
}

func Extract(snowflakeID int64) Snowflake {
	return Snowflake{
		Timestamp: snowflakeID >> timestampPos,
		WorkerID:  (snowflakeID >> workerPos) & maxWorkerValue,
		Increment: snowflakeID & maxIncrementValue,
	}
}

// Time is the creation time encoded in the ID.
func Time(snowflakeID int64) time.Time {
	return time.UnixMilli(snowflakeID >> timestampPos).UTC()
}
