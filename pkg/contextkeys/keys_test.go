package contextkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetUserID(ctx))
	assert.Empty(t, GetOrgID(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUserID(ctx, "user-1")
	ctx = WithOrgID(ctx, "org-1")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "user-1", GetUserID(ctx))
	assert.Equal(t, "org-1", GetOrgID(ctx))
}

func TestValueHelpers(t *testing.T) {
	type principal struct{ email string }
	p := &principal{email: "a@example.com"}

	ctx := WithAuth(context.Background(), p)
	ctx = WithOrg(ctx, "org")

	assert.Same(t, p, ctx.Value(AuthKey))
	assert.Equal(t, "org", ctx.Value(OrgKey))
	assert.Nil(t, ctx.Value(AuditLoggerKey))
}
