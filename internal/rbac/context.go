package rbac

import (
	"context"

	"github.com/linkwave/portal/internal/accounts"
)

type accountContextKey struct{}

// ContextWithAccount stores the resolved account in context.
func ContextWithAccount(ctx context.Context, acct accounts.Account) context.Context {
	return context.WithValue(ctx, accountContextKey{}, acct)
}

// AccountFromContext returns the account resolved earlier in the chain.
func AccountFromContext(ctx context.Context) (accounts.Account, bool) {
	acct, ok := ctx.Value(accountContextKey{}).(accounts.Account)
	return acct, ok
}
