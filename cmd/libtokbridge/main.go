// Command libtokbridge is built with -buildmode=c-shared and exports the
// tokenizer bridge to C callers. Every buffer it returns is malloc'd and must
// be handed back to free_string exactly once.
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/samcharles93/tokbridge/internal/app"
	"github.com/samcharles93/tokbridge/internal/bridge"
	"github.com/samcharles93/tokbridge/internal/cmem"
	"github.com/samcharles93/tokbridge/internal/config"
	"github.com/samcharles93/tokbridge/internal/logger"
)

func main() {}

// instance is the process-wide bridge, built on first use. A config file that
// fails to load is reported and replaced by the defaults.
var instance = sync.OnceValue(func() *bridge.Bridge {
	a, err := app.Load("", app.Options{Allocator: cmem.New()})
	if err == nil {
		return a.Bridge
	}
	logger.Default().Error("tokbridge config rejected, using defaults", "error", err)
	a, err = app.New(config.Defaults(), app.Options{Allocator: cmem.New()})
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokbridge: %v\n", err)
		return nil
	}
	return a.Bridge
})

// call runs one tokenize request on NUL-terminated inputs. A nil text or
// model is invalid input; a nil token means none.
func call(text, model, token unsafe.Pointer) (p unsafe.Pointer, status bridge.Status) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Default().Error("tokbridge export panicked", "panic", fmt.Sprint(rec))
			p, status = nil, bridge.StatusEngineFailure
		}
	}()
	if text == nil || model == nil {
		return nil, bridge.StatusInvalidInput
	}
	b := instance()
	if b == nil {
		return nil, bridge.StatusEngineFailure
	}
	return b.Tokenize(context.Background(), bridge.Request{
		Text:  cmem.GoString(text),
		Model: cmem.GoString(model),
		Token: cmem.GoString(token),
	})
}

func release(p unsafe.Pointer) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Default().Error("free_string panicked", "panic", fmt.Sprint(rec))
		}
	}()
	if p == nil {
		return
	}
	if b := instance(); b != nil {
		b.Release(p)
	}
}

//export tokenize_text
func tokenize_text(text, modelName *C.char) *C.char {
	p, _ := call(unsafe.Pointer(text), unsafe.Pointer(modelName), nil)
	return (*C.char)(p)
}

//export tokenize_text_with_token
func tokenize_text_with_token(text, modelName, token *C.char) *C.char {
	p, _ := call(unsafe.Pointer(text), unsafe.Pointer(modelName), unsafe.Pointer(token))
	return (*C.char)(p)
}

//export tokenize_text_ex
func tokenize_text_ex(text, modelName, token *C.char, status *C.int) *C.char {
	p, s := call(unsafe.Pointer(text), unsafe.Pointer(modelName), unsafe.Pointer(token))
	if status != nil {
		*status = C.int(s)
	}
	return (*C.char)(p)
}

//export free_string
func free_string(s *C.char) {
	release(unsafe.Pointer(s))
}

//export tokbridge_status_string
func tokbridge_status_string(status C.int) *C.char {
	return statusString(int(status))
}
