package api

import (
	"net/http"
	"strconv"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gin-gonic/gin"

	"github.com/greenmesh/greenmesh/app"
)

// execute commits fn as op and writes the outcome. It reports whether fn
// succeeded; on failure the response has already been written.
func (s *Server) execute(c *gin.Context, op string, fn func(ctx sdk.Context) error) (app.BlockResult, bool) {
	res, err := s.app.Execute(op, fn)
	if err != nil {
		writeError(c, err)
		return res, false
	}
	return res, true
}

// commit executes fn and answers with the committed block.
func (s *Server) commit(c *gin.Context, op string, status int, fn func(ctx sdk.Context) error) {
	res, ok := s.execute(c, op, fn)
	if !ok {
		return
	}
	c.JSON(status, txResponse(res))
}

// query runs fn against committed state, writing the error on failure.
func (s *Server) query(c *gin.Context, fn func(ctx sdk.Context) error) bool {
	if err := s.app.Query(fn); err != nil {
		writeError(c, err)
		return false
	}
	return true
}

func txResponse(res app.BlockResult) TxResponse {
	return TxResponse{Height: res.Height, Time: res.Time, Events: res.Events}
}

// bindJSON decodes the body into req, answering 400 on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, err)
		return false
	}
	return true
}

// pathAddress parses a bech32 address path parameter.
func pathAddress(c *gin.Context, name string) (sdk.AccAddress, bool) {
	addr, err := sdk.AccAddressFromBech32(c.Param(name))
	if err != nil {
		badRequest(c, err)
		return nil, false
	}
	return addr, true
}

// pathID parses a numeric path parameter.
func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		badRequest(c, err)
		return 0, false
	}
	return id, true
}

func respond(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}
