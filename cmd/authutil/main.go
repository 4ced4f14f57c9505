package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"optibid.com/internal/auth"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	var err error
	switch os.Args[1] {
	case "hash":
		err = runHash(os.Args[2:])
	case "issue":
		err = runIssue(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

// runHash prints a bcrypt hash for a password read from stdin, suitable for
// password_hash in a principals file.
func runHash(args []string) error {
	fs := flag.NewFlagSet("hash", flag.ExitOnError)
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	_ = fs.Parse(args)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return errors.New("password expected on stdin")
	}
	password := strings.TrimRight(line, "\r\n")
	hash, err := auth.HashPasswordCost(password, *cost)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func runIssue(args []string) error {
	fs := flag.NewFlagSet("issue", flag.ExitOnError)
	var (
		sub    = fs.String("sub", "", "principal id")
		email  = fs.String("email", "", "principal email")
		role   = fs.String("role", string(auth.RoleUser), "principal role")
		kind   = fs.String("kind", string(auth.TokenAccess), "access or refresh")
		ttl    = fs.Duration("ttl", auth.DefaultAccessTTL, "token lifetime")
		issuer = fs.String("issuer", envOr("OPTIBID_TOKEN_ISSUER", "optibid"), "iss claim")
	)
	_ = fs.Parse(args)

	r, err := auth.ParseRole(*role)
	if err != nil {
		return err
	}
	iss, err := newIssuer(*issuer)
	if err != nil {
		return err
	}
	tok, err := iss.Issue(*sub, *email, r, auth.TokenKind(*kind), *ttl)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"token":      tok.Value,
		"jti":        tok.ID,
		"kind":       tok.Kind,
		"issued_at":  tok.IssuedAt.Format(time.RFC3339),
		"expires_at": tok.ExpiresAt.Format(time.RFC3339),
	})
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	var (
		kind   = fs.String("kind", string(auth.TokenAccess), "access or refresh")
		issuer = fs.String("issuer", envOr("OPTIBID_TOKEN_ISSUER", "optibid"), "expected iss claim")
	)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: authutil verify [-kind access|refresh] <token>")
	}

	iss, err := newIssuer(*issuer)
	if err != nil {
		return err
	}
	claims, err := iss.Verify(fs.Arg(0), auth.TokenKind(*kind))
	if err != nil {
		return err
	}
	return printJSON(claims)
}

func newIssuer(name string) (*auth.Issuer, error) {
	secret := strings.TrimSpace(os.Getenv("OPTIBID_AUTH_SECRET"))
	return auth.NewIssuer([]byte(secret), auth.WithIssuerName(name))
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s hash|issue|verify [flags]\n", os.Args[0])
	os.Exit(1)
}
