package gemini

import (
	"context"
	"testing"
	"time"
)

func TestWithDeadline_AppliesTimeout(t *testing.T) {
	c := &Client{timeout: 5 * time.Second}
	ctx, cancel := c.withDeadline(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline on the derived context")
	}
	if remaining := time.Until(deadline); remaining > 5*time.Second || remaining < 4*time.Second {
		t.Errorf("deadline %v from now, want ~5s", remaining)
	}
}

func TestWithDeadline_ZeroTimeoutLeavesContextUnbounded(t *testing.T) {
	c := &Client{}
	ctx, cancel := c.withDeadline(context.Background())
	defer cancel()

	if _, ok := ctx.Deadline(); ok {
		t.Error("zero timeout must not impose a deadline")
	}
}

func TestWithDeadline_KeepsShorterCallerDeadline(t *testing.T) {
	c := &Client{timeout: time.Hour}
	parent, parentCancel := context.WithTimeout(context.Background(), time.Second)
	defer parentCancel()

	ctx, cancel := c.withDeadline(parent)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if time.Until(deadline) > 2*time.Second {
		t.Errorf("deadline extended past the caller's: %v", time.Until(deadline))
	}
}

func TestWireRole(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"user", "user"},
		{"assistant", "model"},
		{"model", "model"},
		{"", "user"},
		{"system", "user"},
	}
	for _, tt := range tests {
		if got := wireRole(tt.in); got != tt.want {
			t.Errorf("wireRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToContents_MapsRolesAndText(t *testing.T) {
	history := []Turn{
		{Role: "user", Text: "what is a slice?"},
		{Role: "assistant", Text: "a view over an array"},
	}
	contents := toContents(history)
	if len(contents) != 2 {
		t.Fatalf("contents = %d, want 2", len(contents))
	}
	if contents[0].Role != "user" || contents[1].Role != "model" {
		t.Errorf("roles = %q/%q, want user/model", contents[0].Role, contents[1].Role)
	}
}
