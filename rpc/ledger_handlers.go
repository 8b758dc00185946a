package rpc

import (
	"net/http"
	"strings"
)

const maxEventsPerQuery = 500

type addressParams struct {
	Address string `json:"address"`
}

type holdingParams struct {
	Owner string `json:"owner"`
	Asset string `json:"asset"`
}

type listEventsParams struct {
	Prefix string `json:"prefix,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (s *Server) handleLedgerGetBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	addr, err := parseIdentity("address", params.Address)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	balance, err := s.node.Balance(addr)
	if err != nil {
		s.writeInstructionError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, BalanceResult{Address: addr.String(), Balance: formatAmount(balance)})
}

func (s *Server) handleLedgerGetHolding(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params holdingParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	owner, err := parseIdentity("owner", params.Owner)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	asset, err := parseIdentity("asset", params.Asset)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	addr, holding, err := s.node.Holding(owner, asset)
	if err != nil {
		s.writeInstructionError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, holdingResult(addr, owner, holding))
}

// handleListEvents accepts an optional parameter object; no params lists the
// most recent events of every type.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params listEventsParams
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			invalidParams(w, req.ID, err)
			return
		}
	}
	limit := params.Limit
	if limit <= 0 || limit > maxEventsPerQuery {
		limit = maxEventsPerQuery
	}
	entries := s.node.Events(strings.TrimSpace(params.Prefix), limit)
	out := make([]EventResult, 0, len(entries))
	for _, entry := range entries {
		out = append(out, eventResult(entry))
	}
	writeResult(w, req.ID, out)
}
