// Package access holds the role-based authorization policy consulted at the top
// of every privileged registry, scheduler, escrow and signals operation.
//
// Grants live in their own store so every module shares one view of who may do
// what. Admins manage grants; genesis seeds them.
package access

import (
	"context"
	"fmt"
	"sort"

	errorsmod "cosmossdk.io/errors"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

const (
	// ModuleName is the codespace and genesis section of the access policy.
	ModuleName = "access"
	// StoreKey holds the grants. It must not share a prefix with any other
	// mounted store, so it cannot be "access" next to auth's "acc".
	StoreKey = "roles"

	EventTypeRoleGranted = "role_granted"
	EventTypeRoleRevoked = "role_revoked"
)

var (
	ErrUnknownRole  = errorsmod.Register(ModuleName, 2, "unknown role")
	ErrInvalidGrant = errorsmod.Register(ModuleName, 3, "invalid role grant")
	ErrUnauthorized = errorsmod.Register(ModuleName, 20, "unauthorized")
	ErrLastAdmin    = errorsmod.Register(ModuleName, 30, "cannot revoke the last admin")
	roleKeyPrefix   = []byte{0x01}
	roleCountPrefix = []byte{0x02}
)

// Role names a privilege.
type Role string

const (
	RoleAdmin             Role = "admin"
	RoleAttestor          Role = "attestor"
	RoleOracle            Role = "oracle"
	RoleSlasher           Role = "slasher"
	RoleScheduler         Role = "scheduler"
	RoleValidator         Role = "validator"
	RoleCapacityManager   Role = "capacity_manager"
	RoleReputationManager Role = "reputation_manager"
	RoleBulkRegistrar     Role = "bulk_registrar"
	RoleEscrowAgent       Role = "escrow_agent"
)

// AllRoles lists every known role in a stable order.
var AllRoles = []Role{
	RoleAdmin, RoleAttestor, RoleOracle, RoleSlasher, RoleScheduler, RoleValidator,
	RoleCapacityManager, RoleReputationManager, RoleBulkRegistrar, RoleEscrowAgent,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// Grant is a single (role, holder) pair as it appears in genesis.
type Grant struct {
	Role    Role   `json:"role"`
	Address string `json:"address"`
}

// Policy answers role membership questions and manages grants.
type Policy struct {
	storeKey storetypes.StoreKey
}

// NewPolicy creates a policy backed by the given store key.
func NewPolicy(storeKey storetypes.StoreKey) Policy {
	return Policy{storeKey: storeKey}
}

func roleKey(role Role, addr sdk.AccAddress) []byte {
	key := append([]byte{}, roleKeyPrefix...)
	key = append(key, byte(len(role)))
	key = append(key, role...)
	return append(key, addr...)
}

func rolePrefix(role Role) []byte {
	key := append([]byte{}, roleKeyPrefix...)
	key = append(key, byte(len(role)))
	return append(key, role...)
}

func roleCountKey(role Role) []byte {
	return append(append([]byte{}, roleCountPrefix...), role...)
}

func (p Policy) store(ctx context.Context) storetypes.KVStore {
	return sdk.UnwrapSDKContext(ctx).KVStore(p.storeKey)
}

// HasRole reports whether addr holds role.
func (p Policy) HasRole(ctx context.Context, role Role, addr sdk.AccAddress) bool {
	if len(addr) == 0 {
		return false
	}
	return p.store(ctx).Has(roleKey(role, addr))
}

// Require fails with ErrUnauthorized unless actor holds at least one of roles.
func (p Policy) Require(ctx context.Context, actor sdk.AccAddress, roles ...Role) error {
	for _, role := range roles {
		if p.HasRole(ctx, role, actor) {
			return nil
		}
	}
	return ErrUnauthorized.Wrapf("%s lacks role %v", actor, roles)
}

// RequireSelfOr passes when actor is owner or holds one of roles.
func (p Policy) RequireSelfOr(ctx context.Context, actor, owner sdk.AccAddress, roles ...Role) error {
	if len(actor) > 0 && actor.Equals(owner) {
		return nil
	}
	return p.Require(ctx, actor, roles...)
}

// Grant gives role to addr. Only admins may grant.
func (p Policy) Grant(ctx context.Context, granter sdk.AccAddress, role Role, addr sdk.AccAddress) error {
	if err := p.Require(ctx, granter, RoleAdmin); err != nil {
		return err
	}
	if err := p.SetRole(ctx, role, addr); err != nil {
		return err
	}
	sdk.UnwrapSDKContext(ctx).EventManager().EmitEvent(
		sdk.NewEvent(
			EventTypeRoleGranted,
			sdk.NewAttribute("role", string(role)),
			sdk.NewAttribute("address", addr.String()),
			sdk.NewAttribute("granter", granter.String()),
		),
	)
	return nil
}

// Revoke removes role from addr. Only admins may revoke and the last admin stays.
func (p Policy) Revoke(ctx context.Context, granter sdk.AccAddress, role Role, addr sdk.AccAddress) error {
	if err := p.Require(ctx, granter, RoleAdmin); err != nil {
		return err
	}
	if !role.Valid() {
		return ErrUnknownRole.Wrap(string(role))
	}
	if !p.HasRole(ctx, role, addr) {
		return nil
	}
	if role == RoleAdmin && p.count(ctx, role) <= 1 {
		return ErrLastAdmin
	}
	store := p.store(ctx)
	store.Delete(roleKey(role, addr))
	p.setCount(ctx, role, p.count(ctx, role)-1)
	sdk.UnwrapSDKContext(ctx).EventManager().EmitEvent(
		sdk.NewEvent(
			EventTypeRoleRevoked,
			sdk.NewAttribute("role", string(role)),
			sdk.NewAttribute("address", addr.String()),
			sdk.NewAttribute("granter", granter.String()),
		),
	)
	return nil
}

// SetRole writes a grant without checking the caller. Used by genesis and by
// Grant after its own check.
func (p Policy) SetRole(ctx context.Context, role Role, addr sdk.AccAddress) error {
	if !role.Valid() {
		return ErrUnknownRole.Wrap(string(role))
	}
	if len(addr) == 0 {
		return ErrInvalidGrant.Wrap("empty address")
	}
	if p.HasRole(ctx, role, addr) {
		return nil
	}
	p.store(ctx).Set(roleKey(role, addr), []byte{1})
	p.setCount(ctx, role, p.count(ctx, role)+1)
	return nil
}

// Members returns every holder of role in store order.
func (p Policy) Members(ctx context.Context, role Role) []sdk.AccAddress {
	prefix := rolePrefix(role)
	iter := storetypes.KVStorePrefixIterator(p.store(ctx), prefix)
	defer iter.Close()

	var out []sdk.AccAddress
	for ; iter.Valid(); iter.Next() {
		out = append(out, sdk.AccAddress(append([]byte{}, iter.Key()[len(prefix):]...)))
	}
	return out
}

func (p Policy) count(ctx context.Context, role Role) uint64 {
	bz := p.store(ctx).Get(roleCountKey(role))
	if bz == nil {
		return 0
	}
	return sdk.BigEndianToUint64(bz)
}

func (p Policy) setCount(ctx context.Context, role Role, n uint64) {
	p.store(ctx).Set(roleCountKey(role), sdk.Uint64ToBigEndian(n))
}

// InitGenesis writes the genesis grants.
func (p Policy) InitGenesis(ctx context.Context, grants []Grant) error {
	for _, g := range grants {
		addr, err := sdk.AccAddressFromBech32(g.Address)
		if err != nil {
			return ErrInvalidGrant.Wrapf("%s: %v", g.Address, err)
		}
		if err := p.SetRole(ctx, g.Role, addr); err != nil {
			return err
		}
	}
	return nil
}

// ExportGenesis returns all grants sorted by role then address.
func (p Policy) ExportGenesis(ctx context.Context) []Grant {
	var grants []Grant
	for _, role := range AllRoles {
		for _, addr := range p.Members(ctx, role) {
			grants = append(grants, Grant{Role: role, Address: addr.String()})
		}
	}
	sort.SliceStable(grants, func(i, j int) bool {
		if grants[i].Role != grants[j].Role {
			return grants[i].Role < grants[j].Role
		}
		return grants[i].Address < grants[j].Address
	})
	return grants
}

// ValidateGrants checks a genesis grant list.
func ValidateGrants(grants []Grant) error {
	seen := make(map[string]bool, len(grants))
	for _, g := range grants {
		if !g.Role.Valid() {
			return ErrUnknownRole.Wrap(string(g.Role))
		}
		if _, err := sdk.AccAddressFromBech32(g.Address); err != nil {
			return ErrInvalidGrant.Wrapf("%s: %v", g.Address, err)
		}
		key := fmt.Sprintf("%s/%s", g.Role, g.Address)
		if seen[key] {
			return ErrInvalidGrant.Wrapf("duplicate grant %s", key)
		}
		seen[key] = true
	}
	return nil
}
