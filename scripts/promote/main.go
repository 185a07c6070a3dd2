// Command promote grants superadmin to an existing account. It is the
// recovery path when no superadmin can sign in.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/linkwave/portal/internal/accounts"
	"github.com/linkwave/portal/internal/app"
	"github.com/linkwave/portal/internal/catalog"
)

// promoteActor is recorded as the audit actor for command-line promotions.
const promoteActor = "system:promote"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code so deferred cleanup always happens.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("promote", flag.ContinueOnError)
	fs.SetOutput(stderr)
	email := fs.String("email", "", "account email to promote")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *email == "" {
		fmt.Fprintln(stderr, "usage: promote -email user@example.com")
		return 2
	}

	cfg, err := app.LoadStoreConfig()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := app.NewLogger(&app.Config{LogFormat: "json"})
	cat := catalog.Default()
	stores, err := app.OpenStores(ctx, *cfg, cat, logger)
	if err != nil {
		fmt.Fprintf(stderr, "open stores: %v\n", err)
		return 1
	}
	defer stores.Close()

	svc := accounts.NewService(stores.Accounts, cat, accounts.ServiceDeps{Logger: logger, Audit: stores.AuditRecorder()})
	acct, err := svc.Promote(ctx, accounts.Account{Email: promoteActor}, *email)
	if err != nil {
		fmt.Fprintf(stderr, "promote: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "→ %s is now %s\n", acct.Email, acct.Role)
	return 0
}
