// Package middleware wraps a ports.Ledger to change what reaches the backend.
package middleware

import "github.com/aretw0/tendril/pkg/ports"

// Middleware allows wrapping a Ledger to add behavior.
type Middleware func(ports.Ledger) ports.Ledger

// Chain applies middlewares so that the first one listed sees calls first.
func Chain(l ports.Ledger, mws ...Middleware) ports.Ledger {
	for i := len(mws) - 1; i >= 0; i-- {
		l = mws[i](l)
	}
	return l
}
