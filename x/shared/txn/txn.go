// Package txn runs a keeper operation on a branched multistore so that a failed
// operation leaves neither writes nor events behind.
package txn

import (
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Atomic runs fn against a cache branch of ctx with a private event manager.
// Writes and events reach ctx only when fn returns nil. A panic inside fn
// discards the branch and propagates.
func Atomic(ctx sdk.Context, fn func(ctx sdk.Context) error) error {
	cms := ctx.MultiStore().CacheMultiStore()
	em := sdk.NewEventManager()
	branch := ctx.WithMultiStore(cms).WithEventManager(em)

	if err := fn(branch); err != nil {
		return err
	}

	cms.Write()
	ctx.EventManager().EmitEvents(em.Events())
	return nil
}

// AtomicValue is Atomic for operations that produce a value.
func AtomicValue[T any](ctx sdk.Context, fn func(ctx sdk.Context) (T, error)) (T, error) {
	var out T
	err := Atomic(ctx, func(ctx sdk.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
