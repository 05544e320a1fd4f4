package api

import (
	"net/http"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gin-gonic/gin"

	signalstypes "github.com/greenmesh/greenmesh/x/signals/types"
)

func (s *Server) handleGetCertificate(c *gin.Context) {
	node, ok := pathAddress(c, "node")
	if !ok {
		return
	}
	var (
		cert  signalstypes.GreenCertificate
		found bool
	)
	if !s.query(c, func(ctx sdk.Context) error {
		cert, found = s.app.Signals.GetGreenCertificate(ctx, node)
		return nil
	}) {
		return
	}
	if !found {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{
			Error: "no green certificate for " + node.String(),
			Code:  http.StatusText(http.StatusNotFound),
			Kind:  "state",
		})
		return
	}
	respond(c, cert)
}

// handleSubmitCertificate accepts an oracle-signed claim. The signature, not
// the bearer, authorizes it, so the route is public.
func (s *Server) handleSubmitCertificate(c *gin.Context) {
	var req SubmitCertificateRequest
	if !bindJSON(c, &req) {
		return
	}
	s.commit(c, "submit_green_certificate", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Signals.SubmitGreenCertificate(ctx, req.Claim, req.Signature)
	})
}

func (s *Server) handleRevokeCertificate(c *gin.Context) {
	node, ok := pathAddress(c, "node")
	if !ok {
		return
	}
	actor := caller(c)
	s.commit(c, "revoke_green_certificate", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Signals.RevokeGreenCertificate(ctx, actor, node)
	})
}

func (s *Server) handleGetNodeScore(c *gin.Context) {
	node, ok := pathAddress(c, "node")
	if !ok {
		return
	}
	var score, multiplier uint32
	var green bool
	if !s.query(c, func(ctx sdk.Context) error {
		score = s.app.Signals.NodeScore(ctx, node)
		multiplier = s.app.Signals.RewardMultiplier(ctx, node)
		green = s.app.Signals.IsGreen(ctx, node)
		return nil
	}) {
		return
	}
	respond(c, gin.H{"node": node.String(), "score": score, "green": green, "reward_multiplier": multiplier})
}

func (s *Server) handleSetNodeScore(c *gin.Context) {
	node, ok := pathAddress(c, "node")
	if !ok {
		return
	}
	var req NodeScoreRequest
	if !bindJSON(c, &req) {
		return
	}
	actor := caller(c)
	s.commit(c, "set_node_score", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Signals.SetNodeScore(ctx, actor, node, req.Score)
	})
}

func (s *Server) handleGetForecast(c *gin.Context) {
	resp := ForecastResponse{JobType: c.Param("job_type")}
	if !s.query(c, func(ctx sdk.Context) error {
		resp.Demand, resp.Urgency, resp.Confidence = s.app.Signals.DemandForecast(ctx, resp.JobType)
		return nil
	}) {
		return
	}
	respond(c, resp)
}

func (s *Server) handleSetForecast(c *gin.Context) {
	var forecast signalstypes.DemandForecast
	if !bindJSON(c, &forecast) {
		return
	}
	forecast.JobType = c.Param("job_type")
	actor := caller(c)
	s.commit(c, "set_demand_forecast", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Signals.SetDemandForecast(ctx, actor, forecast)
	})
}

func (s *Server) handlePendingPredictions(c *gin.Context) {
	var pending []signalstypes.PredictionRequest
	if !s.query(c, func(ctx sdk.Context) (err error) {
		pending, err = s.app.Signals.PendingPredictions(ctx)
		return err
	}) {
		return
	}
	respond(c, gin.H{"predictions": pending})
}

func (s *Server) handleFulfillPrediction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req FulfillPredictionRequest
	if !bindJSON(c, &req) {
		return
	}
	actor := caller(c)
	s.commit(c, "fulfill_prediction", http.StatusOK, func(ctx sdk.Context) error {
		return s.app.Signals.FulfillPrediction(ctx, actor, id, req.EstimateSeconds)
	})
}
