package api

import (
	"net/http"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gin-gonic/gin"

	escrowtypes "github.com/greenmesh/greenmesh/x/escrow/types"
	schedulertypes "github.com/greenmesh/greenmesh/x/scheduler/types"
)

// handleListJobs lists jobs by client, type or queue. Exactly one filter applies;
// without one the pending queue is returned.
func (s *Server) handleListJobs(c *gin.Context) {
	client := c.Query("client")
	jobType := c.Query("type")
	queue := c.DefaultQuery("queue", "pending")

	var clientAddr sdk.AccAddress
	if client != "" {
		addr, err := sdk.AccAddressFromBech32(client)
		if err != nil {
			badRequest(c, err)
			return
		}
		clientAddr = addr
	}
	if queue != "pending" && queue != "green" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Code:    http.StatusText(http.StatusBadRequest),
			Kind:    "validation",
			Details: "queue must be pending or green",
		})
		return
	}

	var jobs []schedulertypes.Job
	if !s.query(c, func(ctx sdk.Context) (err error) {
		switch {
		case clientAddr != nil:
			jobs, err = s.app.Scheduler.JobsByClient(ctx, clientAddr)
		case jobType != "":
			jobs, err = s.app.Scheduler.JobsByType(ctx, jobType)
		case queue == "green":
			jobs, err = s.app.Scheduler.GreenQueue(ctx)
		default:
			jobs, err = s.app.Scheduler.PendingJobs(ctx)
		}
		return err
	}) {
		return
	}
	respond(c, JobListResponse{Jobs: jobs, Total: len(jobs)})
}

func (s *Server) handleMyJobs(c *gin.Context) {
	client := caller(c)
	var jobs []schedulertypes.Job
	if !s.query(c, func(ctx sdk.Context) (err error) {
		jobs, err = s.app.Scheduler.JobsByClient(ctx, client)
		return err
	}) {
		return
	}
	respond(c, JobListResponse{Jobs: jobs, Total: len(jobs)})
}

func (s *Server) handleGetJob(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var job schedulertypes.Job
	if !s.query(c, func(ctx sdk.Context) (err error) {
		job, err = s.app.Scheduler.GetJob(ctx, id)
		return err
	}) {
		return
	}
	respond(c, job)
}

func (s *Server) handleQuotePrice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var price math.Int
	if !s.query(c, func(ctx sdk.Context) (err error) {
		price, err = s.app.Scheduler.QuotePrice(ctx, id)
		return err
	}) {
		return
	}
	respond(c, QuoteResponse{JobID: id, Price: price})
}

func (s *Server) handleCreateJob(c *gin.Context) {
	var spec schedulertypes.JobSpec
	if !bindJSON(c, &spec) {
		return
	}
	client := caller(c)
	var id uint64
	res, ok := s.execute(c, "create_job", func(ctx sdk.Context) (err error) {
		id, err = s.app.Scheduler.CreateJob(ctx, client, spec)
		return err
	})
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, CreateJobResponse{TxResponse: txResponse(res), JobID: id})
}

func (s *Server) handleSetJobAudit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req AuditRequest
	if !bindJSON(c, &req) {
		return
	}
	actor := caller(c)
	s.commit(c, "set_job_audit", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Scheduler.SetJobAudit(ctx, actor, id, req.Enabled)
	})
}

func (s *Server) handleAssignJob(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor := caller(c)
	s.commit(c, "assign_job", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Scheduler.AssignJob(ctx, actor, id)
	})
}

func (s *Server) handleStartJob(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	node := caller(c)
	s.commit(c, "start_job", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Scheduler.StartJob(ctx, node, id)
	})
}

func (s *Server) handleCompleteJob(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req CompleteJobRequest
	if !bindJSON(c, &req) {
		return
	}
	node := caller(c)
	s.commit(c, "complete_job", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Scheduler.CompleteJob(ctx, node, id, req.ResultHash, req.ResultRef)
	})
}

func (s *Server) handleSettleJob(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor := caller(c)
	s.commit(c, "settle_job", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Scheduler.SettleJob(ctx, actor, id)
	})
}

func (s *Server) handleCancelJob(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req CancelJobRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	actor := caller(c)
	s.commit(c, "cancel_job", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Scheduler.CancelJob(ctx, actor, id, req.Reason)
	})
}

// ==================== Escrow ====================

func (s *Server) handleGetEscrow(c *gin.Context) {
	id, ok := pathID(c, "job_id")
	if !ok {
		return
	}
	var record escrowtypes.Record
	if !s.query(c, func(ctx sdk.Context) (err error) {
		record, err = s.app.Escrow.GetEscrow(ctx, id)
		return err
	}) {
		return
	}
	respond(c, record)
}

func (s *Server) handleFundEscrow(c *gin.Context) {
	id, ok := pathID(c, "job_id")
	if !ok {
		return
	}
	payer := caller(c)
	s.commit(c, "fund_escrow", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Escrow.Fund(ctx, payer, id)
	})
}
