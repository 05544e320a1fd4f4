package api

import (
	"errors"
	"net/http"

	errorsmod "cosmossdk.io/errors"
	"github.com/gin-gonic/gin"

	escrowtypes "github.com/greenmesh/greenmesh/x/escrow/types"
	registrytypes "github.com/greenmesh/greenmesh/x/registry/types"
	schedulertypes "github.com/greenmesh/greenmesh/x/scheduler/types"
	"github.com/greenmesh/greenmesh/x/shared/errkind"
	signalstypes "github.com/greenmesh/greenmesh/x/signals/types"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Codespace  string `json:"codespace,omitempty"`
	ABCICode   uint32 `json:"abci_code,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Details    string `json:"details,omitempty"`
}

var notFound = []error{
	registrytypes.ErrNodeNotFound,
	registrytypes.ErrUnknownDeviceType,
	schedulertypes.ErrJobNotFound,
	escrowtypes.ErrEscrowNotFound,
	signalstypes.ErrPredictionNotFound,
}

// statusFor maps an error onto its HTTP status.
func statusFor(err error) int {
	for _, target := range notFound {
		if errors.Is(err, target) {
			return http.StatusNotFound
		}
	}
	switch errkind.Of(err) {
	case errkind.Validation:
		return http.StatusBadRequest
	case errkind.Authorization:
		return http.StatusForbidden
	case errkind.State:
		return http.StatusConflict
	case errkind.Collaborator:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError aborts the request with err.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	kind := errkind.Of(err)
	codespace, code, _ := errorsmod.ABCIInfo(err, false)

	resp := ErrorResponse{
		Error:     err.Error(),
		Code:      http.StatusText(status),
		Kind:      kind.String(),
		Codespace: codespace,
		ABCICode:  code,
	}
	switch codespace {
	case registrytypes.ModuleName:
		resp.Suggestion = registrytypes.GetRecoverySuggestion(err)
	case schedulertypes.ModuleName:
		resp.Suggestion = schedulertypes.GetRecoverySuggestion(err)
	}
	if kind == errkind.Internal {
		resp.Error = "internal error"
		resp.Details = ""
		c.Error(err) //nolint:errcheck
	}
	c.AbortWithStatusJSON(status, resp)
}

// badRequest aborts with a request decoding failure.
func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:   "Invalid request",
		Code:    http.StatusText(http.StatusBadRequest),
		Kind:    errkind.Validation.String(),
		Details: err.Error(),
	})
}
