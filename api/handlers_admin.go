package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gin-gonic/gin"

	"github.com/greenmesh/greenmesh/app"
	"github.com/greenmesh/greenmesh/pkg/eventsink"
	registrytypes "github.com/greenmesh/greenmesh/x/registry/types"
	schedulertypes "github.com/greenmesh/greenmesh/x/scheduler/types"
	"github.com/greenmesh/greenmesh/x/shared/access"
)

func (s *Server) handleCircuitStatus(c *gin.Context) {
	respond(c, s.app.CircuitStatus())
}

func (s *Server) handlePause(c *gin.Context) {
	var req CircuitRequest
	if !bindJSON(c, &req) {
		return
	}
	actor := caller(c)
	s.commit(c, "pause", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.CircuitBreakers().Pause(ctx, actor, req.Module, req.Reason)
	})
}

func (s *Server) handleResume(c *gin.Context) {
	var req CircuitRequest
	if !bindJSON(c, &req) {
		return
	}
	actor := caller(c)
	s.commit(c, "resume", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.CircuitBreakers().Resume(ctx, actor, req.Module, req.Reason)
	})
}

func (s *Server) handleGetParams(c *gin.Context) {
	var (
		registryParams  registrytypes.Params
		schedulerParams schedulertypes.Params
	)
	if !s.query(c, func(ctx sdk.Context) (err error) {
		schedulerParams = s.app.Scheduler.GetParams(ctx)
		registryParams, err = s.app.Registry.GetParams(ctx)
		return err
	}) {
		return
	}
	respond(c, gin.H{"registry": registryParams, "scheduler": schedulerParams})
}

func (s *Server) handleUpdateRegistryParams(c *gin.Context) {
	var params registrytypes.Params
	if !bindJSON(c, &params) {
		return
	}
	actor := caller(c)
	s.commit(c, "update_registry_params", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Registry.UpdateParams(ctx, actor, params)
	})
}

func (s *Server) handleUpdateSchedulerParams(c *gin.Context) {
	var params schedulertypes.Params
	if !bindJSON(c, &params) {
		return
	}
	actor := caller(c)
	s.commit(c, "update_scheduler_params", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Scheduler.UpdateParams(ctx, actor, params)
	})
}

func (s *Server) handleGrantRole(c *gin.Context) {
	s.changeRole(c, "grant_role", access.Policy.Grant)
}

func (s *Server) handleRevokeRole(c *gin.Context) {
	s.changeRole(c, "revoke_role", access.Policy.Revoke)
}

func (s *Server) changeRole(
	c *gin.Context,
	op string,
	change func(access.Policy, context.Context, sdk.AccAddress, access.Role, sdk.AccAddress) error,
) {
	var req RoleRequest
	if !bindJSON(c, &req) {
		return
	}
	addr, err := sdk.AccAddressFromBech32(req.Address)
	if err != nil {
		badRequest(c, err)
		return
	}
	granter := caller(c)
	s.commit(c, op, http.StatusOK, func(ctx sdk.Context) error {
		return change(s.app.Policy, ctx, granter, access.Role(req.Role), addr)
	})
}

// handleListEvents pages through the committed event log. Query parameters
// prefixed with "attr." filter on event attributes.
func (s *Server) handleListEvents(c *gin.Context) {
	filter := app.EventFilter{
		Type:       c.Query("type"),
		Attributes: map[string]string{},
	}
	if v := c.Query("from"); v != "" {
		h, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(c, err)
			return
		}
		filter.FromHeight = h
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, err)
			return
		}
		filter.Limit = n
	}
	for key, values := range c.Request.URL.Query() {
		if name, found := strings.CutPrefix(key, "attr."); found && name != "" && len(values) > 0 {
			filter.Attributes[name] = values[0]
		}
	}

	records, err := s.app.Events(filter)
	if err != nil {
		writeError(c, err)
		return
	}
	if records == nil {
		records = []eventsink.Record{}
	}
	respond(c, gin.H{"events": records, "count": len(records)})
}
