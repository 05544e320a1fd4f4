package keeper

import (
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/greenmesh/greenmesh/x/escrow/types"
)

// RegisterInvariants registers the escrow module invariants
func RegisterInvariants(ir sdk.InvariantRegistry, k Keeper) {
	ir.RegisterRoute(types.ModuleName, "escrow-balance", EscrowBalanceInvariant(k))
}

// EscrowBalanceInvariant checks that the module account holds exactly the sum
// of funded escrows.
func EscrowBalanceInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		funded := math.ZeroInt()
		err := k.IterateEscrows(ctx, func(r types.Record) bool {
			if r.Status == types.StatusFunded {
				funded = funded.Add(r.Amount)
			}
			return false
		})
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "escrow-balance", err.Error()), true
		}
		balance := k.bankKeeper.GetBalance(ctx, ModuleAddress(), k.GetParams(ctx).Denom).Amount
		broken := !balance.Equal(funded)
		return sdk.FormatInvariant(types.ModuleName, "escrow-balance",
			fmt.Sprintf("funded escrows %s, module balance %s", funded, balance)), broken
	}
}
