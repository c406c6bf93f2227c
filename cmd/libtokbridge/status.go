package main

/*
#include <stdlib.h>
*/
import "C"

import "github.com/samcharles93/tokbridge/internal/bridge"

// statusStrings live for the whole process; callers must not free them.
var statusStrings = func() []*C.char {
	out := make([]*C.char, bridge.StatusEngineFailure+1)
	for s := bridge.StatusOK; s <= bridge.StatusEngineFailure; s++ {
		out[s] = C.CString(s.String())
	}
	return out
}()

var unknownStatus = C.CString("unknown status")

func statusString(code int) *C.char {
	if code < 0 || code >= len(statusStrings) {
		return unknownStatus
	}
	return statusStrings[code]
}
