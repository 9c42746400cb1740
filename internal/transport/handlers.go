package transport

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/DmMeta/ChordSeek/internal/chord"
	apperr "github.com/DmMeta/ChordSeek/internal/errors"
)

func (s *Server) join(c echo.Context) error {
	var req joinRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Invalid("malformed join request: %v", err)
	}

	hops, err := s.node.Join(c.Request().Context(), chord.JoinRequest{
		BootstrapAddr: req.IPAddr,
		Init:          req.Init,
		TransferData:  req.TransferData,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hopsResponse{NumHops: int64(hops)})
}

func (s *Server) leave(c echo.Context) error {
	hops, err := s.node.Leave(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hopsResponse{NumHops: int64(hops)})
}

func (s *Server) findSuccessor(c echo.Context) error {
	keyID, err := keyParam(c)
	if err != nil {
		return err
	}
	ref, err := s.node.FindSuccessor(c.Request().Context(), keyID)
	if err != nil {
		return s.defaultOnProtocolError(c, err)
	}
	return c.JSON(http.StatusOK, ref)
}

func (s *Server) getSuccessor(c echo.Context) error {
	return c.JSON(http.StatusOK, s.node.Successor())
}

func (s *Server) setSuccessor(c echo.Context) error {
	var req setNeighborRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Invalid("malformed set_successor request: %v", err)
	}
	s.node.SetSuccessor(req.IPAddr)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getPredecessor(c echo.Context) error {
	return c.JSON(http.StatusOK, s.node.Predecessor())
}

func (s *Server) setPredecessor(c echo.Context) error {
	var req setNeighborRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Invalid("malformed set_predecessor request: %v", err)
	}
	s.node.SetPredecessor(req.IPAddr)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) closestPrecedingFinger(c echo.Context) error {
	keyID, err := keyParam(c)
	if err != nil {
		return err
	}
	ref, err := s.node.ClosestPrecedingFinger(keyID)
	if err != nil {
		return s.defaultOnProtocolError(c, err)
	}
	return c.JSON(http.StatusOK, ref)
}

func (s *Server) updateFingerTable(c echo.Context) error {
	var req fingerUpdateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Invalid("malformed update_finger_table request: %v", err)
	}
	if err := s.node.UpdateFingerTable(c.Request().Context(), req.IPAddr, req.Index); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) fixFingerTable(c echo.Context) error {
	var req fixFingerRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Invalid("malformed fix_finger_table request: %v", err)
	}
	if err := s.node.FixFingerTable(c.Request().Context(), req.IPAddr, req.SuccessorIPAddr, req.Index); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) clearHops(c echo.Context) error {
	return c.JSON(http.StatusOK, hopsResponse{NumHops: s.node.Hops().Clear()})
}

func (s *Server) requestData(c echo.Context) error {
	var req dataRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Invalid("malformed request_data request: %v", err)
	}
	records, err := s.node.RequestData(c.Request().Context(), req.NodeID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, recordsPayload{Data: records})
}

func (s *Server) storeRecords(c echo.Context) error {
	var req recordsPayload
	if err := c.Bind(&req); err != nil {
		return apperr.Invalid("malformed store request: %v", err)
	}
	if err := s.node.StoreRecords(c.Request().Context(), req.Data); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getData(c echo.Context) error {
	education := c.QueryParam("education")
	if education == "" {
		return apperr.Invalid("education is required")
	}
	minAwards := 0
	if raw := c.QueryParam("max_awards"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return apperr.Invalid("max_awards must be a non-negative integer")
		}
		minAwards = v
	}

	records, err := s.node.GetData(c.Request().Context(), education, minAwards)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, recordsPayload{Data: records})
}

func (s *Server) fingerTable(c echo.Context) error {
	return c.JSON(http.StatusOK, fingerTableResponse{Data: s.node.FingerTable()})
}

// defaultOnProtocolError answers a protocol invariant violation with the
// RPC's empty response instead of a failure status: the violation is the
// remote value's fault, not this exchange's, and is already logged.
func (s *Server) defaultOnProtocolError(c echo.Context, err error) error {
	if re, ok := apperr.AsRing(err); ok && re.Code == apperr.CodeProtocol {
		return c.JSON(http.StatusOK, chord.NodeRef{})
	}
	return err
}

func keyParam(c echo.Context) (uint64, error) {
	raw := c.QueryParam("key_id")
	if raw == "" {
		return 0, apperr.Invalid("key_id is required")
	}
	keyID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperr.Invalid("key_id must be an unsigned integer: %v", err)
	}
	return keyID, nil
}
