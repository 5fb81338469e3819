package resolver

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
)

// goroutineID extracts the current goroutine's id from its stack header.
// Debug-assertion use only; ids are never stored beyond the owner check.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Header shape: "goroutine 123 [running]:"
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// ownerCheck enforces the single-context ownership rule: every public entry
// point of the coordinator must run on the goroutine that constructed it.
type ownerCheck struct {
	gid uint64
}

func newOwnerCheck() ownerCheck {
	return ownerCheck{gid: goroutineID()}
}

func (o ownerCheck) assert() {
	if gid := goroutineID(); gid != o.gid {
		panic(fmt.Sprintf("resolver: called on goroutine %d, owned by goroutine %d", gid, o.gid))
	}
}
