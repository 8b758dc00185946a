package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"nhooyr.io/websocket"

	"steadrent/core"
	"steadrent/core/genesis"
	"steadrent/crypto"
	"steadrent/native/exhibition"
	"steadrent/rpc/middleware"
	"steadrent/storage"
)

const testJWTSecret = "rpc-test-secret-0123456789"

func fill(b byte) crypto.Identity {
	var id crypto.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

var (
	platformID  = fill(0x0F)
	renterID    = fill(0x01)
	exhibitorID = fill(0x02)
	buyerID     = fill(0x03)
	propertyID  = fill(0xA1)
	paintingID  = fill(0xB1)
)

type testEnv struct {
	node   *core.Node
	server *Server
	http   *httptest.Server
}

func newTestEnv(t *testing.T, cfg ServerConfig) *testEnv {
	t.Helper()
	node, err := core.NewNode(storage.NewMemDB(), core.WithDepositRate(0))
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	spec := &genesis.Spec{
		Balances: []genesis.BalanceSpec{
			{Address: renterID.String(), Amount: 1_000},
			{Address: exhibitorID.String(), Amount: 1_000},
			{Address: buyerID.String(), Amount: 50_000},
		},
		Assets: []genesis.AssetSpec{
			{ID: propertyID.String(), Owner: renterID.String()},
			{ID: paintingID.String(), Owner: exhibitorID.String()},
		},
		Config: &genesis.ConfigSpec{FeeRecipient: platformID.String(), FeeRateBps: 250},
	}
	if err := node.ApplyGenesis(context.Background(), spec); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}
	srv, err := NewServer(node, cfg, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)
	return &testEnv{node: node, server: srv, http: httpSrv}
}

func (e *testEnv) call(t *testing.T, method string, params interface{}, token string) (json.RawMessage, *RPCError, int) {
	t.Helper()
	payload := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, e.http.URL+"/", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := e.http.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	if res.Header.Get(middleware.RequestIDHeader) == "" {
		t.Fatalf("response missing request id")
	}
	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return decoded.Result, decoded.Error, res.StatusCode
}

func mustResult(t *testing.T, raw json.RawMessage, rpcErr *RPCError, out interface{}) {
	t.Helper()
	if rpcErr != nil {
		t.Fatalf("unexpected rpc error: %+v", rpcErr)
	}
	if out == nil {
		return
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode result %s: %v", raw, err)
	}
}

func errorTag(t *testing.T, rpcErr *RPCError) string {
	t.Helper()
	if rpcErr == nil {
		t.Fatalf("expected rpc error")
	}
	data, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("error data not an object: %#v", rpcErr.Data)
	}
	tag, _ := data["tag"].(string)
	return tag
}

func TestConsignmentFlowOverRPC(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})

	var derived DeriveResult
	raw, rpcErr, _ := env.call(t, "exhibition_derive", map[string]string{"property": propertyID.String()}, "")
	mustResult(t, raw, rpcErr, &derived)

	var opened ExhibitionResult
	raw, rpcErr, _ = env.call(t, "exhibition_open", map[string]interface{}{
		"renter":       renterID.String(),
		"exhibitor":    exhibitorID.String(),
		"property":     propertyID.String(),
		"renterFeeBps": 500,
	}, "")
	mustResult(t, raw, rpcErr, &opened)
	if opened.ID != derived.Exhibition || opened.Status != "active" {
		t.Fatalf("unexpected exhibition: %+v (derived %+v)", opened, derived)
	}

	var item ItemResult
	raw, rpcErr, _ = env.call(t, "exhibition_deposit", map[string]string{
		"id":     opened.ID,
		"caller": exhibitorID.String(),
		"asset":  paintingID.String(),
		"price":  "10000",
	}, "")
	mustResult(t, raw, rpcErr, &item)

	var view ExhibitionResult
	raw, rpcErr, _ = env.call(t, "exhibition_get", map[string]string{"id": opened.ID}, "")
	mustResult(t, raw, rpcErr, &view)
	if view.ItemCount != 1 || len(view.Items) != 1 || view.Items[0] != item.ID {
		t.Fatalf("unexpected exhibition view: %+v", view)
	}
	if view.EscrowAuthority != derived.EscrowAuthority {
		t.Fatalf("escrow authority mismatch: %s vs %s", view.EscrowAuthority, derived.EscrowAuthority)
	}

	var receipt ReceiptResult
	raw, rpcErr, _ = env.call(t, "exhibition_purchase", map[string]string{
		"id":    opened.ID,
		"buyer": buyerID.String(),
		"item":  item.ID,
	}, "")
	mustResult(t, raw, rpcErr, &receipt)
	if receipt.RenterAmount != "500" || receipt.PlatformAmount != "250" || receipt.ExhibitorAmount != "9250" {
		t.Fatalf("unexpected split: %+v", receipt)
	}
	if receipt.Destination != buyerID.String() {
		t.Fatalf("destination should default to buyer, got %s", receipt.Destination)
	}

	var balance BalanceResult
	raw, rpcErr, _ = env.call(t, "ledger_getBalance", map[string]string{"address": platformID.String()}, "")
	mustResult(t, raw, rpcErr, &balance)
	if balance.Balance != "250" {
		t.Fatalf("platform balance %s, want 250", balance.Balance)
	}

	var holding HoldingResult
	raw, rpcErr, _ = env.call(t, "ledger_getHolding", map[string]string{"owner": buyerID.String(), "asset": paintingID.String()}, "")
	mustResult(t, raw, rpcErr, &holding)
	if holding.Amount != "1" || holding.Authority != buyerID.String() {
		t.Fatalf("unexpected buyer holding: %+v", holding)
	}

	var events []EventResult
	raw, rpcErr, _ = env.call(t, "stead_listEvents", map[string]interface{}{"prefix": "exhibition.item.", "limit": 10}, "")
	mustResult(t, raw, rpcErr, &events)
	if len(events) != 2 || events[0].Type != exhibition.EventTypeItemDeposited || events[1].Type != exhibition.EventTypeItemPurchased {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[1].Attributes["price"] != "10000" {
		t.Fatalf("purchase event missing price: %+v", events[1])
	}

	_, rpcErr, status := env.call(t, "exhibition_close", map[string]string{"id": opened.ID, "caller": renterID.String()}, "")
	if rpcErr != nil || status != http.StatusOK {
		t.Fatalf("close failed: %+v (status %d)", rpcErr, status)
	}
	_, rpcErr, status = env.call(t, "exhibition_get", map[string]string{"id": opened.ID}, "")
	if status != http.StatusNotFound || rpcErr.Code != codeNotFound {
		t.Fatalf("expected not found after close, got %d %+v", status, rpcErr)
	}
}

func TestInstructionErrorsCarryTags(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})

	_, rpcErr, status := env.call(t, "exhibition_open", map[string]interface{}{
		"renter":       renterID.String(),
		"exhibitor":    exhibitorID.String(),
		"property":     propertyID.String(),
		"renterFeeBps": 9_751,
	}, "")
	if status != http.StatusUnprocessableEntity || rpcErr.Code != codeFeeOutOfRange {
		t.Fatalf("unexpected response %d %+v", status, rpcErr)
	}
	if tag := errorTag(t, rpcErr); tag != exhibition.TagFeeOutOfRange {
		t.Fatalf("tag %q, want %q", tag, exhibition.TagFeeOutOfRange)
	}

	_, rpcErr, status = env.call(t, "stead_setConfig", map[string]interface{}{
		"caller":       buyerID.String(),
		"feeRecipient": buyerID.String(),
		"feeRateBps":   10,
	}, "")
	if status != http.StatusForbidden {
		t.Fatalf("expected forbidden, got %d %+v", status, rpcErr)
	}
	if tag := errorTag(t, rpcErr); tag != exhibition.TagConstraintViolation {
		t.Fatalf("tag %q, want %q", tag, exhibition.TagConstraintViolation)
	}

	_, rpcErr, status = env.call(t, "ledger_getHolding", map[string]string{"owner": buyerID.String(), "asset": propertyID.String()}, "")
	if status != http.StatusNotFound || errorTag(t, rpcErr) != "NotFound" {
		t.Fatalf("expected holding not found, got %d %+v", status, rpcErr)
	}
}

func TestWrongRecordIDsAreConstraintViolations(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})

	var opened ExhibitionResult
	raw, rpcErr, _ := env.call(t, "exhibition_open", map[string]interface{}{
		"renter":       renterID.String(),
		"exhibitor":    exhibitorID.String(),
		"property":     propertyID.String(),
		"renterFeeBps": 500,
	}, "")
	mustResult(t, raw, rpcErr, &opened)
	var item ItemResult
	raw, rpcErr, _ = env.call(t, "exhibition_deposit", map[string]string{
		"id":     opened.ID,
		"caller": exhibitorID.String(),
		"asset":  paintingID.String(),
		"price":  "100",
	}, "")
	mustResult(t, raw, rpcErr, &item)
	configAddr, _, err := exhibition.ConfigAddress()
	if err != nil {
		t.Fatalf("config address: %v", err)
	}

	cases := []struct {
		method string
		params map[string]string
	}{
		{"exhibition_purchase", map[string]string{"id": item.ID, "buyer": buyerID.String(), "item": item.ID}},
		{"exhibition_withdraw", map[string]string{"id": opened.ID, "caller": exhibitorID.String(), "item": opened.ID}},
		{"exhibition_cancel", map[string]string{"id": configAddr.String(), "caller": renterID.String()}},
		{"exhibition_get", map[string]string{"id": item.ID}},
		{"exhibition_getItem", map[string]string{"item": opened.ID}},
	}
	for _, tc := range cases {
		_, rpcErr, status := env.call(t, tc.method, tc.params, "")
		if status != http.StatusNotFound || rpcErr.Code != codeNotFound {
			t.Fatalf("%s: expected not found, got %d %+v", tc.method, status, rpcErr)
		}
		if tag := errorTag(t, rpcErr); tag != exhibition.TagConstraintViolation {
			t.Fatalf("%s: tag %q, want %q", tc.method, tag, exhibition.TagConstraintViolation)
		}
	}
}

func TestZeroIdentityRejectedOverRPC(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	zero := crypto.ZeroIdentity.String()

	_, rpcErr, status := env.call(t, "stead_initConfig", map[string]interface{}{
		"payer":        zero,
		"feeRecipient": platformID.String(),
		"feeRateBps":   100,
	}, "")
	if status != http.StatusConflict || errorTag(t, rpcErr) != exhibition.TagConstraintViolation {
		t.Fatalf("init config with zero payer: %d %+v", status, rpcErr)
	}

	_, rpcErr, status = env.call(t, "exhibition_open", map[string]interface{}{
		"renter":       renterID.String(),
		"payer":        zero,
		"exhibitor":    exhibitorID.String(),
		"property":     propertyID.String(),
		"renterFeeBps": 500,
	}, "")
	if status != http.StatusConflict || errorTag(t, rpcErr) != exhibition.TagConstraintViolation {
		t.Fatalf("open with zero payer: %d %+v", status, rpcErr)
	}

	var opened ExhibitionResult
	raw, rpcErr, _ := env.call(t, "exhibition_open", map[string]interface{}{
		"renter":       renterID.String(),
		"exhibitor":    exhibitorID.String(),
		"property":     propertyID.String(),
		"renterFeeBps": 500,
	}, "")
	mustResult(t, raw, rpcErr, &opened)

	_, rpcErr, status = env.call(t, "exhibition_cancel", map[string]string{"id": opened.ID, "caller": zero}, "")
	if status != http.StatusConflict || errorTag(t, rpcErr) != exhibition.TagConstraintViolation {
		t.Fatalf("cancel with zero caller: %d %+v", status, rpcErr)
	}
}

func TestInvalidRequests(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})

	_, rpcErr, status := env.call(t, "exhibition_unknown", nil, "")
	if status != http.StatusNotFound || rpcErr.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %d %+v", status, rpcErr)
	}

	_, rpcErr, _ = env.call(t, "exhibition_get", map[string]string{"id": "stead1invalid"}, "")
	if rpcErr == nil || rpcErr.Code != codeInvalidParams {
		t.Fatalf("expected invalid params for bad identity, got %+v", rpcErr)
	}

	_, rpcErr, _ = env.call(t, "exhibition_get", map[string]string{"id": renterID.String(), "extra": "x"}, "")
	if rpcErr == nil || rpcErr.Code != codeInvalidParams {
		t.Fatalf("expected invalid params for unknown field, got %+v", rpcErr)
	}

	_, rpcErr, _ = env.call(t, "exhibition_deposit", map[string]string{
		"id": renterID.String(), "caller": renterID.String(), "asset": paintingID.String(), "price": "-1",
	}, "")
	if rpcErr == nil || !strings.Contains(rpcErr.Data.(string), "price") {
		t.Fatalf("expected price validation error, got %+v", rpcErr)
	}

	res, err := env.http.Client().Post(env.http.URL+"/", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", res.StatusCode)
	}
}

func TestMutatingMethodsRequireToken(t *testing.T) {
	env := newTestEnv(t, ServerConfig{Auth: middleware.AuthConfig{Enabled: true, HMACSecret: testJWTSecret, Issuer: "rpc-tests"}})

	open := map[string]interface{}{
		"renter":       renterID.String(),
		"exhibitor":    exhibitorID.String(),
		"property":     propertyID.String(),
		"renterFeeBps": 100,
	}
	_, rpcErr, status := env.call(t, "exhibition_open", open, "")
	if status != http.StatusUnauthorized || rpcErr.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got %d %+v", status, rpcErr)
	}

	raw, rpcErr, _ := env.call(t, "stead_getConfig", nil, "")
	var cfg ConfigResult
	mustResult(t, raw, rpcErr, &cfg)
	if cfg.FeeRateBps != 250 || cfg.FeeRecipient != platformID.String() {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "rpc-tests",
		"sub": "operator",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	_, rpcErr, status = env.call(t, "exhibition_open", open, signed)
	if rpcErr != nil || status != http.StatusOK {
		t.Fatalf("authorised open failed: %d %+v", status, rpcErr)
	}
}

func TestRateLimitedRequests(t *testing.T) {
	env := newTestEnv(t, ServerConfig{RateLimit: middleware.RateLimit{RequestsPerMinute: 1, Burst: 1}})
	if _, rpcErr, _ := env.call(t, "stead_getConfig", nil, ""); rpcErr != nil {
		t.Fatalf("first request failed: %+v", rpcErr)
	}
	res, err := env.http.Client().Post(env.http.URL+"/", "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":2,"method":"stead_getConfig"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", res.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	if _, rpcErr, _ := env.call(t, "stead_getConfig", nil, ""); rpcErr != nil {
		t.Fatalf("getConfig failed: %+v", rpcErr)
	}
	var metrics string
	for _, path := range []string{"/healthz", "/metrics"} {
		res, err := env.http.Client().Get(env.http.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%s returned %d", path, res.StatusCode)
		}
		metrics = string(body)
	}
	if !strings.Contains(metrics, `stead_module_requests_total{method="stead_getConfig",module="stead",outcome="success"}`) {
		t.Fatalf("module metrics missing from /metrics output")
	}
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws/events?prefix=exhibition."
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// The subscription is registered after the upgrade completes.
	deadline := time.Now().Add(2 * time.Second)
	for env.node.EventSubscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("event subscription never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, _, err := env.node.OpenExhibition(ctx, renterID, renterID, exhibitorID, propertyID, 100); err != nil {
		t.Fatalf("open: %v", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var evt EventResult
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.Type != exhibition.EventTypeOpened {
		t.Fatalf("unexpected event type %q", evt.Type)
	}
}
