package main

import (
	"os"
	"time"
)

// DefaultSeed mixes the wall clock with the process id. Good enough to make
// demo runs differ, nothing more.
func DefaultSeed() int64 {
	return time.Now().UnixNano() + ^int64(os.Getpid())
}
