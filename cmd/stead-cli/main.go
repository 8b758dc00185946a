package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"steadrent/cmd/internal/secret"
	"steadrent/crypto"
)

const (
	rpcURLEnv   = "STEAD_RPC_URL"
	rpcTokenEnv = "STEAD_RPC_TOKEN"
)

var (
	rpcEndpoint  string
	forceAuth    bool
	prettyOutput bool
	tokenSource  = secret.NewSource(rpcTokenEnv, "rpc token")
	httpClient   = &http.Client{Timeout: 30 * time.Second}
)

func main() {
	args := os.Args[1:]
	var err error
	rpcEndpoint = defaultRPCEndpoint()
	args, err = applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	prettyOutput = term.IsTerminal(int(os.Stdout.Fd()))
	os.Exit(run(args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "keygen":
		return runKeygen(args[1:], stdout, stderr)
	case "config":
		return runConfigCommand(args[1:], stdout, stderr)
	case "exhibition":
		return runExhibitionCommand(args[1:], stdout, stderr)
	case "balance":
		return runBalance(args[1:], stdout, stderr)
	case "holding":
		return runHolding(args[1:], stdout, stderr)
	case "events":
		return runEvents(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv(rpcURLEnv)); v != "" {
		return v
	}
	return "http://localhost:8545"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
		case strings.HasPrefix(arg, "--rpc="):
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
		case arg == "--auth":
			forceAuth = true
		default:
			out = append(out, arg)
		}
	}
	return out, nil
}

// bearerToken returns the token for mutating calls. The token is taken from
// the environment when present; --auth prompts for it otherwise.
func bearerToken() (string, error) {
	if forceAuth {
		return tokenSource.Get()
	}
	token, _ := tokenSource.FromEnv()
	return token, nil
}

func doRPCRequest(payload []byte, requireAuth bool) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if requireAuth {
		token, err := bearerToken()
		if err != nil {
			return nil, err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	return resp, nil
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	var out string
	fs.StringVar(&out, "out", "wallet.key", "file receiving the hex-encoded key seed")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, fmt.Sprintf("generate key: %v", err))
	}
	if err := os.WriteFile(out, []byte(hex.EncodeToString(key.Seed())), 0o600); err != nil {
		return printError(stderr, fmt.Sprintf("write key: %v", err))
	}
	fmt.Fprintf(stdout, "Identity: %s\nKey saved to %s\n", key.Identity(), out)
	return 0
}

func runConfigCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, configUsage())
		return 1
	}
	switch args[0] {
	case "get":
		return callAndPrint("stead_getConfig", nil, false, stdout, stderr)
	case "init", "set":
		method := "stead_initConfig"
		actorFlag := "payer"
		if args[0] == "set" {
			method = "stead_setConfig"
			actorFlag = "caller"
		}
		fs := newFlagSet("config "+args[0], stderr)
		var (
			actor     string
			recipient string
			feeBps    uint
		)
		fs.StringVar(&actor, actorFlag, "", actorFlag+" identity")
		fs.StringVar(&recipient, "fee-recipient", "", "platform fee recipient identity")
		fs.UintVar(&feeBps, "fee-bps", 0, "platform fee rate in basis points")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		if actor == "" {
			return printError(stderr, fmt.Sprintf("--%s is required", actorFlag))
		}
		if recipient == "" {
			return printError(stderr, "--fee-recipient is required")
		}
		if feeBps > 10_000 {
			return printError(stderr, "--fee-bps must be <= 10000")
		}
		params := map[string]interface{}{
			actorFlag:      actor,
			"feeRecipient": recipient,
			"feeRateBps":   feeBps,
		}
		return callAndPrint(method, params, true, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown config subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, configUsage())
		return 1
	}
}

func runBalance(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		return printError(stderr, "usage: stead-cli balance <identity>")
	}
	return callAndPrint("ledger_getBalance", map[string]interface{}{"address": args[0]}, false, stdout, stderr)
}

func runHolding(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("holding", stderr)
	var owner, asset string
	fs.StringVar(&owner, "owner", "", "holding owner identity")
	fs.StringVar(&asset, "asset", "", "asset identity")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if owner == "" || asset == "" {
		return printError(stderr, "--owner and --asset are required")
	}
	return callAndPrint("ledger_getHolding", map[string]interface{}{"owner": owner, "asset": asset}, false, stdout, stderr)
}

func runEvents(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("events", stderr)
	var (
		prefix string
		limit  int
	)
	fs.StringVar(&prefix, "prefix", "", "only events whose type starts with prefix")
	fs.IntVar(&limit, "limit", 50, "maximum number of events")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if limit <= 0 {
		return printError(stderr, "--limit must be positive")
	}
	params := map[string]interface{}{"limit": limit}
	if prefix != "" {
		params["prefix"] = prefix
	}
	return callAndPrint("stead_listEvents", params, false, stdout, stderr)
}

func usage() string {
	return strings.TrimSpace(`Usage: stead-cli [--rpc URL] [--auth] <command> [arguments]

Mutating commands send the bearer token from STEAD_RPC_TOKEN; --auth prompts
for it when the variable is unset.

Commands:
  keygen       Generate a signing key and print its identity
  config       Platform config (init, set, get)
  exhibition   Exhibition lifecycle and consignment subcommands
  balance      Native balance of an identity
  holding      Wallet holding of an owner for an asset
  events       Recently committed events
`)
}

func configUsage() string {
	return strings.TrimSpace(`Usage:
  stead-cli config <command> [flags]

Commands:
  init  Create the platform config (--payer, --fee-recipient, --fee-bps)
  set   Replace fee recipient and rate (--caller, --fee-recipient, --fee-bps)
  get   Show the platform config
`)
}
