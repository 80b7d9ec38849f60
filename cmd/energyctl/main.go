package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	flag "github.com/spf13/pflag"

	"nhbenergy/crypto"
)

const (
	defaultEndpoint  = "http://localhost:8088"
	defaultSecretEnv = "ENERGYD_JWT_SECRET"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: energyctl <command> [flags]

Keys:
  keygen                      generate a key and print its address
  address --key <hex>         print the address of a private key
  token --sub <addr>          sign a bearer token with the shared secret

Ledger:
  params | energy <addr> | claims <addr> | week <n> | lot <nonce> | events
  lock --amount N --epochs E
  unlock | unlock-early --nonce N --amount A
  reduce --nonce N --amount A --epochs E
  claim [--week W]
  deposit --token-id T --amount A [--nonce N]
  send-fees
  admin penalty|fees-burn|fees-collector|mint|pause|advance [flags]`)
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}
	if err := dispatch(context.Background(), os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, command string, args []string, out io.Writer) error {
	switch command {
	case "keygen":
		return runKeygen(out)
	case "address":
		return runAddress(args, out)
	case "token":
		return runToken(args, out)
	case "help", "-h", "--help":
		usage(out)
		return nil
	default:
		return runLedger(ctx, command, args, out)
	}
}

func runKeygen(out io.Writer) error {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "private key: %s\naddress:     %s\n", hex.EncodeToString(key.Bytes()), key.PubKey().Address())
	return nil
}

func runAddress(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	keyHex := fs.String("key", "", "hex encoded private key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr, err := addressFromKey(*keyHex)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, addr)
	return nil
}

func addressFromKey(keyHex string) (crypto.Address, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(keyHex), "0x"))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("decode key: %w", err)
	}
	key, err := crypto.PrivateKeyFromBytes(raw)
	if err != nil {
		return crypto.Address{}, err
	}
	return key.PubKey().Address(), nil
}

func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	sub := fs.String("sub", "", "subject address (bech32)")
	keyHex := fs.String("key", "", "derive the subject from this private key instead")
	scope := fs.String("scope", "", "space separated scopes, e.g. energy:admin")
	issuer := fs.String("issuer", "", "issuer claim")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	secretEnv := fs.String("secret-env", defaultSecretEnv, "environment variable holding the HMAC secret")
	if err := fs.Parse(args); err != nil {
		return err
	}
	subject := strings.TrimSpace(*sub)
	if *keyHex != "" {
		addr, err := addressFromKey(*keyHex)
		if err != nil {
			return err
		}
		subject = addr.String()
	}
	if _, err := crypto.DecodeAddress(subject); err != nil {
		return fmt.Errorf("subject: %w", err)
	}
	secret := strings.TrimSpace(os.Getenv(*secretEnv))
	if secret == "" {
		return fmt.Errorf("%s is not set", *secretEnv)
	}
	signed, err := signToken(secret, subject, *issuer, *scope, time.Now().Add(*ttl))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, signed)
	return nil
}

func signToken(secret, subject, issuer, scope string, expires time.Time) (string, error) {
	claims := jwt.MapClaims{"sub": subject, "exp": expires.Unix(), "iat": time.Now().Unix()}
	if issuer != "" {
		claims["iss"] = issuer
	}
	if scope != "" {
		claims["scope"] = scope
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ledgerRequest is the HTTP call a ledger command resolves to.
type ledgerRequest struct {
	method string
	path   string
	body   any
}

func runLedger(ctx context.Context, command string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	endpoint := fs.String("endpoint", envOr("ENERGYD_URL", defaultEndpoint), "energyd base URL")
	token := fs.String("token", os.Getenv("ENERGYD_TOKEN"), "bearer token")
	amount := fs.String("amount", "", "amount in smallest units")
	nonce := fs.Uint64("nonce", 0, "locked token nonce")
	epochs := fs.Uint64("epochs", 0, "lock or reduction length in epochs")
	week := fs.Int64("week", -1, "reward week (default current)")
	tokenID := fs.String("token-id", "", "token identifier for deposits and mints")
	to := fs.String("to", "", "recipient or collector address")
	minBps := fs.Uint64("min-bps", 0, "minimum penalty in basis points")
	maxBps := fs.Uint64("max-bps", 0, "maximum penalty in basis points")
	bps := fs.Uint64("bps", 0, "basis points")
	module := fs.String("module", "", "module to pause or resume")
	paused := fs.Bool("paused", true, "pause state to set")
	limit := fs.Int("limit", 50, "number of events to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	positional := fs.Args()
	arg := func(i int, name string) (string, error) {
		if len(positional) <= i {
			return "", fmt.Errorf("%s requires <%s>", command, name)
		}
		return url.PathEscape(positional[i]), nil
	}

	var req ledgerRequest
	switch command {
	case "params":
		req = ledgerRequest{method: http.MethodGet, path: "/v1/params"}
	case "energy", "claims":
		addr, err := arg(0, "address")
		if err != nil {
			return err
		}
		req = ledgerRequest{method: http.MethodGet, path: "/v1/" + command + "/" + addr}
	case "week":
		n, err := arg(0, "week")
		if err != nil {
			return err
		}
		req = ledgerRequest{method: http.MethodGet, path: "/v1/weeks/" + n}
	case "lot":
		n, err := arg(0, "nonce")
		if err != nil {
			return err
		}
		req = ledgerRequest{method: http.MethodGet, path: "/v1/lots/" + n}
	case "events":
		req = ledgerRequest{method: http.MethodGet, path: fmt.Sprintf("/v1/events?limit=%d", *limit)}
	case "lock":
		req = ledgerRequest{method: http.MethodPost, path: "/v1/lock", body: map[string]any{"amount": *amount, "lock_epochs": *epochs}}
	case "unlock", "unlock-early":
		req = ledgerRequest{method: http.MethodPost, path: "/v1/" + command, body: map[string]any{"nonce": *nonce, "amount": *amount}}
	case "reduce":
		req = ledgerRequest{method: http.MethodPost, path: "/v1/reduce-lock", body: map[string]any{"nonce": *nonce, "amount": *amount, "epochs": *epochs}}
	case "claim":
		body := map[string]any{}
		if *week >= 0 {
			body["week"] = *week
		}
		req = ledgerRequest{method: http.MethodPost, path: "/v1/claim", body: body}
	case "deposit":
		req = ledgerRequest{method: http.MethodPost, path: "/v1/fees/deposit", body: map[string]any{"token": *tokenID, "nonce": *nonce, "amount": *amount}}
	case "send-fees":
		req = ledgerRequest{method: http.MethodPost, path: "/v1/fees/send"}
	case "admin":
		sub, err := arg(0, "action")
		if err != nil {
			return err
		}
		switch sub {
		case "penalty":
			req = ledgerRequest{method: http.MethodPost, path: "/v1/admin/penalty", body: map[string]any{"min_bps": *minBps, "max_bps": *maxBps}}
		case "fees-burn":
			req = ledgerRequest{method: http.MethodPost, path: "/v1/admin/fees-burn", body: map[string]any{"bps": *bps}}
		case "fees-collector":
			req = ledgerRequest{method: http.MethodPost, path: "/v1/admin/fees-collector", body: map[string]any{"address": *to}}
		case "mint":
			req = ledgerRequest{method: http.MethodPost, path: "/v1/admin/mint", body: map[string]any{"to": *to, "token": *tokenID, "amount": *amount}}
		case "pause":
			req = ledgerRequest{method: http.MethodPost, path: "/v1/admin/pause", body: map[string]any{"module": *module, "paused": *paused}}
		case "advance":
			req = ledgerRequest{method: http.MethodPost, path: "/v1/admin/epoch/advance", body: map[string]any{"epochs": *epochs}}
		default:
			return fmt.Errorf("unknown admin action %q", sub)
		}
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	raw, err := newAPIClient(*endpoint, *token).call(ctx, req.method, req.path, req.body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		_, err = out.Write(raw)
		return err
	}
	pretty.WriteByte('\n')
	_, err = pretty.WriteTo(out)
	return err
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
