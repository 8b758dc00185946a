package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

var rpcCall = callRPC

func runExhibitionCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, exhibitionUsage())
		return 1
	}

	switch args[0] {
	case "open":
		return runExhibitionOpen(args[1:], stdout, stderr)
	case "cancel":
		return runExhibitionTransition("exhibition_cancel", args[1:], stdout, stderr)
	case "close":
		return runExhibitionTransition("exhibition_close", args[1:], stdout, stderr)
	case "deposit":
		return runExhibitionDeposit(args[1:], stdout, stderr)
	case "withdraw":
		return runExhibitionWithdraw(args[1:], stdout, stderr)
	case "purchase":
		return runExhibitionPurchase(args[1:], stdout, stderr)
	case "get":
		return runExhibitionGet(args[1:], stdout, stderr)
	case "item":
		return runExhibitionItem(args[1:], stdout, stderr)
	case "derive":
		return runExhibitionDerive(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown exhibition subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, exhibitionUsage())
		return 1
	}
}

func runExhibitionOpen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("exhibition open", stderr)
	var (
		renter    string
		payer     string
		exhibitor string
		property  string
		feeBpsStr string
	)
	fs.StringVar(&renter, "renter", "", "renter identity")
	fs.StringVar(&payer, "payer", "", "optional storage deposit payer (defaults to renter)")
	fs.StringVar(&exhibitor, "exhibitor", "", "exhibitor identity")
	fs.StringVar(&property, "property", "", "rented property asset identity")
	fs.StringVar(&feeBpsStr, "renter-fee-bps", "", "renter share of each sale in basis points")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		return printError(stderr, "unexpected positional arguments")
	}
	switch {
	case renter == "":
		return printError(stderr, "--renter is required")
	case exhibitor == "":
		return printError(stderr, "--exhibitor is required")
	case property == "":
		return printError(stderr, "--property is required")
	case feeBpsStr == "":
		return printError(stderr, "--renter-fee-bps is required")
	}
	feeBps, err := parseBps(feeBpsStr)
	if err != nil {
		return printError(stderr, "--renter-fee-bps "+err.Error())
	}
	params := map[string]interface{}{
		"renter":       renter,
		"exhibitor":    exhibitor,
		"property":     property,
		"renterFeeBps": feeBps,
	}
	if strings.TrimSpace(payer) != "" {
		params["payer"] = payer
	}
	return callAndPrint("exhibition_open", params, true, stdout, stderr)
}

func runExhibitionTransition(method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(method, stderr)
	var id, caller string
	fs.StringVar(&id, "id", "", "exhibition identity")
	fs.StringVar(&caller, "caller", "", "renter identity")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		return printError(stderr, "unexpected positional arguments")
	}
	if id == "" {
		return printError(stderr, "--id is required")
	}
	if caller == "" {
		return printError(stderr, "--caller is required")
	}
	return callAndPrint(method, map[string]interface{}{"id": id, "caller": caller}, true, stdout, stderr)
}

func runExhibitionDeposit(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("exhibition deposit", stderr)
	var id, caller, asset, price string
	fs.StringVar(&id, "id", "", "exhibition identity")
	fs.StringVar(&caller, "caller", "", "exhibitor identity")
	fs.StringVar(&asset, "asset", "", "consigned asset identity")
	fs.StringVar(&price, "price", "", "asking price in base units")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	switch {
	case id == "":
		return printError(stderr, "--id is required")
	case caller == "":
		return printError(stderr, "--caller is required")
	case asset == "":
		return printError(stderr, "--asset is required")
	case price == "":
		return printError(stderr, "--price is required")
	}
	if _, err := strconv.ParseUint(price, 10, 64); err != nil {
		return printError(stderr, "--price must be an unsigned 64-bit integer")
	}
	params := map[string]interface{}{"id": id, "caller": caller, "asset": asset, "price": price}
	return callAndPrint("exhibition_deposit", params, true, stdout, stderr)
}

func runExhibitionWithdraw(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("exhibition withdraw", stderr)
	var id, caller, item string
	fs.StringVar(&id, "id", "", "exhibition identity")
	fs.StringVar(&caller, "caller", "", "exhibitor identity")
	fs.StringVar(&item, "item", "", "item identity")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if id == "" || caller == "" || item == "" {
		return printError(stderr, "--id, --caller and --item are required")
	}
	params := map[string]interface{}{"id": id, "caller": caller, "item": item}
	return callAndPrint("exhibition_withdraw", params, true, stdout, stderr)
}

func runExhibitionPurchase(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("exhibition purchase", stderr)
	var id, buyer, item, destination string
	fs.StringVar(&id, "id", "", "exhibition identity")
	fs.StringVar(&buyer, "buyer", "", "buyer identity")
	fs.StringVar(&item, "item", "", "item identity")
	fs.StringVar(&destination, "destination", "", "optional identity receiving the asset (defaults to buyer)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if id == "" || buyer == "" || item == "" {
		return printError(stderr, "--id, --buyer and --item are required")
	}
	params := map[string]interface{}{"id": id, "buyer": buyer, "item": item}
	if strings.TrimSpace(destination) != "" {
		params["destination"] = destination
	}
	return callAndPrint("exhibition_purchase", params, true, stdout, stderr)
}

func runExhibitionGet(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("exhibition get", stderr)
	var id string
	fs.StringVar(&id, "id", "", "exhibition identity")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if id == "" {
		return printError(stderr, "--id is required")
	}
	return callAndPrint("exhibition_get", map[string]interface{}{"id": id}, false, stdout, stderr)
}

func runExhibitionItem(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("exhibition item", stderr)
	var item string
	fs.StringVar(&item, "item", "", "item identity")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if item == "" {
		return printError(stderr, "--item is required")
	}
	return callAndPrint("exhibition_getItem", map[string]interface{}{"item": item}, false, stdout, stderr)
}

func runExhibitionDerive(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("exhibition derive", stderr)
	var property string
	fs.StringVar(&property, "property", "", "rented property asset identity")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if property == "" {
		return printError(stderr, "--property is required")
	}
	return callAndPrint("exhibition_derive", map[string]interface{}{"property": property}, false, stdout, stderr)
}

func parseBps(value string) (uint64, error) {
	bps, err := strconv.ParseUint(strings.TrimSpace(value), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	if bps > 10_000 {
		return 0, fmt.Errorf("must be <= 10000")
	}
	return bps, nil
}

func callAndPrint(method string, params interface{}, requireAuth bool, stdout, stderr io.Writer) int {
	result, rpcErr, err := rpcCall(method, params, requireAuth)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func printError(w io.Writer, msg string) int {
	fmt.Fprintf(w, "Error: %s\n", msg)
	return 1
}

func handleRPCError(w io.Writer, err *rpcError) int {
	if err == nil {
		return 0
	}
	var data struct {
		Tag    string `json:"tag"`
		Detail string `json:"detail"`
	}
	if len(err.Data) > 0 && json.Unmarshal(err.Data, &data) == nil && data.Tag != "" {
		fmt.Fprintf(w, "RPC error %d (%s): %s\n", err.Code, data.Tag, data.Detail)
		return 1
	}
	fmt.Fprintf(w, "RPC error %d: %s\n", err.Code, err.Message)
	return 1
}

func handleRPCCallError(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "RPC call failed: %v\n", err)
	return 1
}

func writeRPCResult(w io.Writer, result json.RawMessage) {
	if len(result) == 0 {
		fmt.Fprintln(w, "null")
		return
	}
	if prettyOutput {
		var buf bytes.Buffer
		if err := json.Indent(&buf, result, "", "  "); err == nil {
			result = buf.Bytes()
		}
	}
	if _, err := w.Write(result); err == nil {
		if result[len(result)-1] != '\n' {
			fmt.Fprintln(w)
		}
	}
}

func exhibitionUsage() string {
	return strings.TrimSpace(`Usage:
  stead-cli exhibition <command> [flags]

Commands:
  open      Open an exhibition and escrow the rented property
  cancel    Stop accepting new consignments
  close     Close an empty exhibition and refund its deposits
  deposit   Consign an asset at a price
  withdraw  Return a consigned item to the exhibitor
  purchase  Buy a consigned item
  get       Fetch an exhibition and its items
  item      Fetch a consigned item
  derive    Show the addresses derived from a property
`)
}

func callRPC(method string, params interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	} else {
		payload["params"] = []interface{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	resp, err := doRPCRequest(body, requireAuth)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode RPC response (HTTP %d): %w", resp.StatusCode, err)
	}
	return rpcResp.Result, rpcResp.Error, nil
}
