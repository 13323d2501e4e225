// Command shopfloor is a CLI client for the shopfloor server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/shopfloor/internal/client"
	"github.com/and161185/shopfloor/internal/dispatch"
	"github.com/and161185/shopfloor/internal/protocol"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	Email       string    `json:"email"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "shopfloor")
	}
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "shopfloor")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "shopfloor")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok, email string) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, Email: email, ExpiresAt: tokenExpiry(tok)})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", errors.New("no token (login required)")
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || (!tf.ExpiresAt.IsZero() && time.Now().After(tf.ExpiresAt)) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// tokenExpiry reads exp without verifying the signature; zero means none.
func tokenExpiry(tok string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// report prints a success payload to stdout or the error message to stderr
// and returns the process exit code.
func report(resp protocol.Response, stdout, stderr io.Writer) int {
	if !resp.OK() {
		fmt.Fprintf(stderr, "error %d: %s\n", resp.Code, resp.Message)
		return 1
	}
	fmt.Fprintf(stdout, "ok %d\n", resp.Code)
	if resp.Data != nil {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{"type": resp.Data.PayloadType(), "value": resp.Data})
	}
	return 0
}

func usage() {
	fmt.Fprintf(os.Stderr, `shopfloor CLI
Usage:
  shopfloor -addr HOST:PORT [-tls [-cacert file | -insecure]] <cmd> [args]

Commands:
  version
  register   -email <email> -password <password> [-name <name>]
  login      -email <email> -password <password>   (saves token)
  logout
  call       -code <NN> [-body <text> | -file <path|->]
  list       -domain <d> [-filter <value>]
  get        -domain <d> -id <uuid>
  status     -domain <d> -id <uuid>
  rm         -domain <d> -id <uuid>
  add-account   -email -password -name [-role CLIENT|WORKER|ADMIN]
  add-item      -sku -name [-qty N] [-location L]
  add-device    -serial -model [-assign <uuid>]
  add-work      -title [-desc D] [-assignee <uuid>] [-device <uuid>]
  add-order     -lines <item-uuid:qty,...> [-customer <uuid>]
  add-shift     -worker <uuid> -start <RFC3339> -end <RFC3339>

Domains: accounts, items, devices, work, orders, shifts
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands over a fresh connection per request.
func main() {
	// global flags
	addr := flag.String("addr", "localhost:7070", "server addr")
	useTLS := flag.Bool("tls", false, "connect with TLS")
	caPath := flag.String("cacert", "", "CA cert (PEM)")
	insecure := flag.Bool("insecure", false, "skip cert verify (dev)")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	opts := client.Options{Timeout: *timeout}
	if *useTLS {
		cfg, err := client.LoadTLS(*caPath, *insecure)
		if err != nil {
			fail(err)
		}
		opts.TLS = cfg
	}
	cli := client.New(*addr, opts)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch cmd {

	case "version":
		fmt.Printf("shopfloor %s (%s)\n", version, buildDate)

	case "register", "login":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		email := fs.String("email", "", "email")
		pass := fs.String("password", "", "password")
		name := fs.String("name", "", "display name (register)")
		_ = fs.Parse(args)
		if *email == "" || *pass == "" {
			fmt.Fprintln(os.Stderr, "need -email and -password")
			os.Exit(1)
		}

		var (
			resp protocol.Response
			err  error
		)
		if cmd == "login" {
			resp, err = cli.Login(ctx, *email, *pass)
		} else {
			resp, err = cli.Register(ctx, *email, *pass, *name)
		}
		if err != nil {
			fail(err)
		}
		s, err := client.SessionOf(resp)
		if err != nil {
			fail(err)
		}
		if err := saveToken(s.Token, s.Account.Email); err != nil {
			fail(err)
		}
		fmt.Printf("ok %s (%s)\n", s.Account.Email, s.Account.Role)

	case "logout":
		if err := os.Remove(tokenPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			fail(err)
		}
		fmt.Println("ok")

	case "call":
		fs := flag.NewFlagSet("call", flag.ExitOnError)
		codeStr := fs.String("code", "", "two-digit action code")
		body := fs.String("body", "", "request body")
		file := fs.String("file", "", "read body from file ('-'=stdin)")
		_ = fs.Parse(args)

		code, err := dispatch.ParseCode(*codeStr)
		if err != nil {
			fail(err)
		}
		if *file != "" {
			b, err := readAll(*file)
			if err != nil {
				fail(err)
			}
			*body = string(b)
		}
		token, _ := loadToken()
		resp, err := cli.Call(ctx, code, token, *body)
		if err != nil {
			fail(err)
		}
		os.Exit(report(resp, os.Stdout, os.Stderr))

	case "list", "get", "status", "rm":
		os.Exit(cmdByID(ctx, cli, cmd, args))
	case "add-account":
		os.Exit(cmdAddAccount(ctx, cli, args))
	case "add-item":
		os.Exit(cmdAddItem(ctx, cli, args))
	case "add-device":
		os.Exit(cmdAddDevice(ctx, cli, args))
	case "add-work":
		os.Exit(cmdAddWork(ctx, cli, args))
	case "add-order":
		os.Exit(cmdAddOrder(ctx, cli, args))
	case "add-shift":
		os.Exit(cmdAddShift(ctx, cli, args))
	default:
		usage()
	}
}

// ---- helpers ----

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
