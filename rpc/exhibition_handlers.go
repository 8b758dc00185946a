package rpc

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"steadrent/core"
	"steadrent/crypto"
	"steadrent/native/exhibition"
	"steadrent/rpc/middleware"
)

const (
	codeFeeOutOfRange       = -32030
	codeArithmetic          = -32031
	codeConstraintViolation = -32032
	codeInsufficientFunds   = -32033
	codeNotFound            = -32034
)

type configParams struct {
	Payer        string `json:"payer,omitempty"`
	Caller       string `json:"caller,omitempty"`
	FeeRecipient string `json:"feeRecipient"`
	FeeRateBps   uint16 `json:"feeRateBps"`
}

type openParams struct {
	Renter       string `json:"renter"`
	Payer        string `json:"payer,omitempty"`
	Exhibitor    string `json:"exhibitor"`
	Property     string `json:"property"`
	RenterFeeBps uint16 `json:"renterFeeBps"`
}

type exhibitionActorParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
}

type depositParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Price  string `json:"price"`
}

type withdrawParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
	Item   string `json:"item"`
}

type purchaseParams struct {
	ID          string `json:"id"`
	Buyer       string `json:"buyer"`
	Item        string `json:"item"`
	Destination string `json:"destination,omitempty"`
}

type exhibitionIDParams struct {
	ID string `json:"id"`
}

type itemIDParams struct {
	Item string `json:"item"`
}

type propertyParams struct {
	Property string `json:"property"`
}

type createdResult struct {
	ID   string      `json:"id"`
	Data interface{} `json:"data,omitempty"`
}

func (s *Server) handleInitConfig(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params configParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	payer, err := parseIdentity("payer", params.Payer)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	recipient, err := parseIdentity("feeRecipient", params.FeeRecipient)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	cfg, err := s.node.InitConfig(r.Context(), payer, recipient, params.FeeRateBps)
	if err != nil {
		s.writeInstructionError(w, r, req.ID, err)
		return
	}
	addr, _, _ := exhibition.ConfigAddress()
	writeResult(w, req.ID, configResult(addr, cfg))
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params configParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	caller, err := parseIdentity("caller", params.Caller)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	recipient, err := parseIdentity("feeRecipient", params.FeeRecipient)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	cfg, err := s.node.SetConfig(r.Context(), caller, recipient, params.FeeRateBps)
	if err != nil {
		s.writeInstructionError(w, r, req.ID, err)
		return
	}
	addr, _, _ := exhibition.ConfigAddress()
	writeResult(w, req.ID, configResult(addr, cfg))
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	cfg, err := s.node.Config()
	if err != nil {
		s.writeInstructionError(w, r, req.ID, err)
		return
	}
	addr, _, _ := exhibition.ConfigAddress()
	writeResult(w, req.ID, configResult(addr, cfg))
}

func (s *Server) handleExhibitionOpen(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params openParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	renter, err := parseIdentity("renter", params.Renter)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	payer := renter
	if strings.TrimSpace(params.Payer) != "" {
		if payer, err = parseIdentity("payer", params.Payer); err != nil {
			invalidParams(w, req.ID, err)
			return
		}
	}
	exhibitor, err := parseIdentity("exhibitor", params.Exhibitor)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	property, err := parseIdentity("property", params.Property)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	id, ex, err := s.node.OpenExhibition(r.Context(), renter, payer, exhibitor, property, params.RenterFeeBps)
	if err != nil {
		s.writeInstructionError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, exhibitionResult(id, ex))
}

func (s *Server) handleExhibitionCancel(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	id, caller, ok := s.actorParams(w, req)
	if !ok {
		return
	}
	ex, err := s.node.CancelExhibition(r.Context(), id, caller)
	if err != nil {
		s.writeInstructionError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, exhibitionResult(id, ex))
}

func (s *Server) handleExhibitionClose(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	id, caller, ok := s.actorParams(w, req)
	if !ok {
		return
	}
	if err := s.node.CloseExhibition(r.Context(), id, caller); err != nil {
		s.writeInstructionError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) actorParams(w http.ResponseWriter, req *RPCRequest) (crypto.Identity, crypto.Identity, bool) {
	var params exhibitionActorParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, err)
		return crypto.ZeroIdentity, crypto.ZeroIdentity, false
	}
	id, err := parseIdentity("id", params.ID)
	if err != nil {
		invalidParams(w, req.ID, err)
		return crypto.ZeroIdentity, crypto.ZeroIdentity, false
	}
	caller, err := parseIdentity("caller", params.Caller)
	if err != nil {
		invalidParams(w, req.ID, err)
		return crypto.ZeroIdentity, crypto.ZeroIdentity, false
	}
	return id, caller, true
}

func (s *Server) handleExhibitionDeposit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params depositParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	id, err := parseIdentity("id", params.ID)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	caller, err := parseIdentity("caller", params.Caller)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	asset, err := parseIdentity("asset", params.Asset)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	price, err := parseAmount("price", params.Price)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	itemID, item, err := s.node.DepositItem(r.Context(), id, caller, asset, price)
	if err != nil {
		s.writeInstructionError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, itemResult(itemID, item))
}

func (s *Server) handleExhibitionWithdraw(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params withdrawParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	id, err := parseIdentity("id", params.ID)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	caller, err := parseIdentity("caller", params.Caller)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	itemID, err := parseIdentity("item", params.Item)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	if err := s.node.WithdrawItem(r.Context(), id, caller, itemID); err != nil {
		s.writeInstructionError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleExhibitionPurchase(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params purchaseParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	id, err := parseIdentity("id", params.ID)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	buyer, err := parseIdentity("buyer", params.Buyer)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	itemID, err := parseIdentity("item", params.Item)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	destination, err := parseOptionalIdentity("destination", params.Destination)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	receipt, err := s.node.PurchaseItem(r.Context(), id, buyer, itemID, destination)
	if err != nil {
		s.writeInstructionError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, receiptResult(receipt))
}

func (s *Server) handleExhibitionGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params exhibitionIDParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	id, err := parseIdentity("id", params.ID)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	view, err := s.node.Exhibition(id)
	if err != nil {
		s.writeInstructionError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, exhibitionViewResult(view))
}

func (s *Server) handleExhibitionGetItem(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params itemIDParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	itemID, err := parseIdentity("item", params.Item)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	item, err := s.node.Item(itemID)
	if err != nil {
		s.writeInstructionError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, itemResult(itemID, item))
}

func (s *Server) handleExhibitionDerive(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params propertyParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	property, err := parseIdentity("property", params.Property)
	if err != nil {
		invalidParams(w, req.ID, err)
		return
	}
	addrs, err := exhibition.DeriveAddresses(property)
	if err != nil {
		s.writeInstructionError(w, r, req.ID, err)
		return
	}
	writeResult(w, req.ID, DeriveResult{
		Exhibition:      addrs.Exhibition.String(),
		EscrowAuthority: addrs.EscrowAuthority.String(),
		PropertyCustody: addrs.PropertyCustody.String(),
	})
}

// writeInstructionError maps a rejected instruction or query onto a JSON-RPC
// error. The error tag is always reported in data.tag.
func (s *Server) writeInstructionError(w http.ResponseWriter, r *http.Request, id interface{}, err error) {
	if err == nil {
		return
	}
	tag := exhibition.ErrorTag(err)
	var instrErr *core.InstructionError
	if errors.As(err, &instrErr) && instrErr.Tag != "" {
		tag = instrErr.Tag
	}
	status := http.StatusInternalServerError
	code := codeServerError
	message := "internal_error"
	switch {
	case errors.Is(err, exhibition.ErrExhibitionNotFound),
		errors.Is(err, exhibition.ErrItemNotFound),
		errors.Is(err, exhibition.ErrConfigNotFound),
		errors.Is(err, core.ErrHoldingNotFound):
		status = http.StatusNotFound
		code = codeNotFound
		message = "not_found"
		if tag == exhibition.TagInternal {
			tag = "NotFound"
		}
	case errors.Is(err, exhibition.ErrUnauthorized):
		status = http.StatusForbidden
		code = codeConstraintViolation
		message = "forbidden"
	case tag == exhibition.TagFeeOutOfRange:
		status = http.StatusUnprocessableEntity
		code = codeFeeOutOfRange
		message = "fee_out_of_range"
	case tag == exhibition.TagArithmetic:
		status = http.StatusUnprocessableEntity
		code = codeArithmetic
		message = "arithmetic_error"
	case tag == exhibition.TagInsufficientFunds:
		status = http.StatusConflict
		code = codeInsufficientFunds
		message = "insufficient_funds"
	case tag == exhibition.TagConstraintViolation:
		status = http.StatusConflict
		code = codeConstraintViolation
		message = "constraint_violation"
	default:
		s.logger.Error("request failed",
			slog.String("request_id", middleware.RequestID(r.Context())),
			slog.String("method", r.Method),
			slog.Any("error", err))
	}
	writeError(w, status, id, code, message, map[string]string{"tag": tag, "detail": err.Error()})
}
