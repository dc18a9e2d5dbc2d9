package utils

import (
	"context"
	"log"
	"runtime/debug"
)

func ToPointer[T any](value T) *T {
	return &value
}

func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[SafeGo] recovered from panic: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

// DetachedContext keeps the values of ctx but not its deadline or cancellation, for
// bookkeeping that must run after the caller's context has expired.
func DetachedContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
