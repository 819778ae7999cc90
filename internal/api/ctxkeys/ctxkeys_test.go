package ctxkeys

import (
	"context"
	"testing"
)

func TestWithValue_SetsAndGetsTypedKey(t *testing.T) {
	t.Parallel()

	ctx := WithValue(context.Background(), ClientID, "203.0.113.7")
	got, ok := ctx.Value(ClientID).(string)
	if !ok {
		t.Fatalf("expected string value")
	}
	if got != "203.0.113.7" {
		t.Fatalf("expected 203.0.113.7, got %q", got)
	}
}

func TestString_UntypedKeyDoesNotCollide(t *testing.T) {
	t.Parallel()

	ctx := context.WithValue(context.Background(), "client_id", "spoofed") //nolint:staticcheck
	if got := String(ctx, ClientID); got != "" {
		t.Fatalf("expected empty value for plain string key, got %q", got)
	}
}
