package api

import (
	"net/http"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gin-gonic/gin"

	registrytypes "github.com/greenmesh/greenmesh/x/registry/types"
	schedulertypes "github.com/greenmesh/greenmesh/x/scheduler/types"
)

func (s *Server) handleListNodes(c *gin.Context) {
	var nodes []registrytypes.Node
	if !s.query(c, func(ctx sdk.Context) (err error) {
		nodes, err = s.app.Registry.GetNodes(ctx)
		return err
	}) {
		return
	}
	respond(c, gin.H{"nodes": nodes, "total": len(nodes)})
}

func (s *Server) handleGetNode(c *gin.Context) {
	addr, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	var node registrytypes.Node
	if !s.query(c, func(ctx sdk.Context) (err error) {
		node, err = s.app.Registry.GetNode(ctx, addr)
		return err
	}) {
		return
	}
	respond(c, node)
}

func (s *Server) handleGetAggregates(c *gin.Context) {
	var agg registrytypes.Aggregates
	if !s.query(c, func(ctx sdk.Context) error {
		agg = s.app.Registry.GetAggregates(ctx)
		return nil
	}) {
		return
	}
	respond(c, agg)
}

// handleRecommendedJobs lists the jobs assigned to a node.
func (s *Server) handleRecommendedJobs(c *gin.Context) {
	addr, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	var jobs []schedulertypes.Job
	if !s.query(c, func(ctx sdk.Context) (err error) {
		jobs, err = s.app.Scheduler.RecommendedJobs(ctx, addr)
		return err
	}) {
		return
	}
	respond(c, JobListResponse{Jobs: jobs, Total: len(jobs)})
}

func (s *Server) handleRegisterNode(c *gin.Context) {
	var req RegisterNodeRequest
	if !bindJSON(c, &req) {
		return
	}
	addr := caller(c)
	s.commit(c, "register_node", http.StatusCreated, func(ctx sdk.Context) error {
		return s.app.Registry.Register(ctx, addr, req.DeviceType, req.Capabilities, req.Attestation)
	})
}

func (s *Server) handleRegisterBatch(c *gin.Context) {
	var req RegisterBatchRequest
	if !bindJSON(c, &req) {
		return
	}
	operator := caller(c)
	s.commit(c, "register_batch", http.StatusCreated, func(ctx sdk.Context) error {
		return s.app.Registry.RegisterBatch(ctx, operator, req.Entries)
	})
}

func (s *Server) handleUnregisterNode(c *gin.Context) {
	addr := caller(c)
	s.commit(c, "unregister_node", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Registry.Unregister(ctx, addr)
	})
}

func (s *Server) handleRenewAttestation(c *gin.Context) {
	var req RenewAttestationRequest
	if !bindJSON(c, &req) {
		return
	}
	addr := caller(c)
	s.commit(c, "renew_attestation", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Registry.RenewAttestation(ctx, addr, req.Attestation)
	})
}

func (s *Server) handlePing(c *gin.Context) {
	addr := caller(c)
	s.commit(c, "ping", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Registry.Ping(ctx, addr)
	})
}

func (s *Server) handleSetPowerSaving(c *gin.Context) {
	var req PowerSavingRequest
	if !bindJSON(c, &req) {
		return
	}
	addr := caller(c)
	s.commit(c, "set_power_saving", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Registry.SetPowerSaving(ctx, addr, req.Enabled)
	})
}

func (s *Server) handleSlashNode(c *gin.Context) {
	addr, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	var req SlashRequest
	if !bindJSON(c, &req) {
		return
	}
	actor := caller(c)
	s.commit(c, "slash", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Registry.Slash(ctx, actor, addr, req.Reason)
	})
}

func (s *Server) handleUpdateReputation(c *gin.Context) {
	addr, ok := pathAddress(c, "address")
	if !ok {
		return
	}
	var req ReputationRequest
	if !bindJSON(c, &req) {
		return
	}
	actor := caller(c)
	s.commit(c, "update_reputation", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Registry.UpdateReputation(ctx, actor, addr, req.Success)
	})
}

// ==================== Catalog ====================

func (s *Server) handleListProfiles(c *gin.Context) {
	var profiles []registrytypes.DeviceProfile
	if !s.query(c, func(ctx sdk.Context) (err error) {
		profiles, err = s.app.Registry.GetDeviceProfiles(ctx)
		return err
	}) {
		return
	}
	respond(c, gin.H{"profiles": profiles})
}

func (s *Server) handleDeviceTypeCounts(c *gin.Context) {
	var counts []registrytypes.DeviceTypeCount
	if !s.query(c, func(ctx sdk.Context) (err error) {
		counts, err = s.app.Registry.DeviceTypeCounts(ctx)
		return err
	}) {
		return
	}
	respond(c, gin.H{"counts": counts})
}

func (s *Server) handleSetProfile(c *gin.Context) {
	var profile registrytypes.DeviceProfile
	if !bindJSON(c, &profile) {
		return
	}
	profile.DeviceType = c.Param("device_type")
	actor := caller(c)
	s.commit(c, "set_device_profile", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Registry.SetDeviceProfile(ctx, actor, profile)
	})
}

func (s *Server) handleRemoveProfile(c *gin.Context) {
	deviceType := c.Param("device_type")
	actor := caller(c)
	s.commit(c, "remove_device_profile", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Registry.RemoveDeviceProfile(ctx, actor, deviceType)
	})
}
