package errkind_test

import (
	"errors"
	"fmt"
	"testing"

	errorsmod "cosmossdk.io/errors"
	"github.com/stretchr/testify/require"

	"github.com/greenmesh/greenmesh/x/shared/errkind"
)

var (
	errBadInput  = errorsmod.Register("errkind_test", 2, "bad input")
	errForbidden = errorsmod.Register("errkind_test", 21, "forbidden")
	errConflict  = errorsmod.Register("errkind_test", 33, "conflict")
	errUpstream  = errorsmod.Register("errkind_test", 51, "upstream")
	errOdd       = errorsmod.Register("errkind_test", 77, "odd")
)

func TestOf(t *testing.T) {
	cases := []struct {
		err  error
		want errkind.Kind
	}{
		{nil, errkind.Internal},
		{errors.New("plain"), errkind.Internal},
		{errBadInput, errkind.Validation},
		{errBadInput.Wrapf("field %s", "x"), errkind.Validation},
		{errForbidden.Wrap("nope"), errkind.Authorization},
		{fmt.Errorf("outer: %w", errConflict.Wrap("inner")), errkind.State},
		{errUpstream, errkind.Collaborator},
		{errOdd, errkind.Internal},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, errkind.Of(tc.err), "%v", tc.err)
	}
}

func TestKindString(t *testing.T) {
	require.Equal(t, "validation", errkind.Validation.String())
	require.Equal(t, "collaborator", errkind.Collaborator.String())
	require.Equal(t, "internal", errkind.Kind(42).String())
}
