package secrets

import (
	"errors"
	"strings"
	"testing"
)

func TestOnePasswordResolver_Scheme(t *testing.T) {
	r := &OnePasswordResolver{}
	if r.Scheme() != "op" {
		t.Errorf("expected scheme 'op', got %q", r.Scheme())
	}
}

func TestOnePasswordResolver_Classify(t *testing.T) {
	const ref = "op://CI/superset/password"
	r := &OnePasswordResolver{}

	tests := []struct {
		name       string
		stderr     string
		wantNotFnd bool
		reason     string
		fix        string
	}{
		{
			name:   "not signed in",
			stderr: "[ERROR] 2024/01/15 10:00:00 You are not currently signed in",
			reason: "not signed in",
			fix:    "OP_SERVICE_ACCOUNT_TOKEN",
		},
		{
			name:       "item not found",
			stderr:     `[ERROR] 2024/01/15 10:00:00 "superset" isn't an item`,
			wantNotFnd: true,
		},
		{
			name:   "vault not found",
			stderr: `[ERROR] 2024/01/15 10:00:00 "CI" isn't a vault`,
			reason: "vault",
			fix:    `"CI"`,
		},
		{
			name:   "generic",
			stderr: "some unexpected error message\n",
			reason: "some unexpected error message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.classify(tt.stderr, ref)

			if tt.wantNotFnd {
				var notFound *NotFoundError
				if !errors.As(err, &notFound) {
					t.Fatalf("expected NotFoundError, got %T", err)
				}
				return
			}

			var backendErr *BackendError
			if !errors.As(err, &backendErr) {
				t.Fatalf("expected BackendError, got %T", err)
			}
			if backendErr.Backend != "1Password" {
				t.Errorf("Backend = %q, want 1Password", backendErr.Backend)
			}
			if !strings.Contains(backendErr.Reason, tt.reason) {
				t.Errorf("Reason = %q, want it to contain %q", backendErr.Reason, tt.reason)
			}
			if !strings.Contains(backendErr.Fix, tt.fix) {
				t.Errorf("Fix = %q, want it to contain %q", backendErr.Fix, tt.fix)
			}
		})
	}
}
