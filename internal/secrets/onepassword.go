package secrets

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// OnePasswordResolver resolves op://vault/item/field references with the
// 1Password CLI. In CI the CLI authenticates via OP_SERVICE_ACCOUNT_TOKEN.
type OnePasswordResolver struct{}

// Scheme returns "op".
func (r *OnePasswordResolver) Scheme() string {
	return "op"
}

// Resolve runs `op read <reference>`.
func (r *OnePasswordResolver) Resolve(ctx context.Context, reference string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if _, err := exec.LookPath("op"); err != nil {
		return "", &BackendError{
			Backend:   "1Password",
			Reference: reference,
			Reason:    "op CLI not found in PATH",
			Fix:       "Install the 1Password CLI in the job image and set OP_SERVICE_ACCOUNT_TOKEN.",
		}
	}

	cmd := exec.CommandContext(ctx, "op", "read", "--no-newline", reference)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", r.classify(stderr.String(), reference)
	}
	return strings.TrimRight(stdout.String(), "\r\n"), nil
}

// classify maps op CLI stderr to a typed error.
func (r *OnePasswordResolver) classify(msg, reference string) error {
	switch {
	case strings.Contains(msg, "not currently signed in") || strings.Contains(msg, "not signed in"):
		return &BackendError{
			Backend:   "1Password",
			Reference: reference,
			Reason:    "not signed in",
			Fix:       "Set OP_SERVICE_ACCOUNT_TOKEN for the job, or run: eval $(op signin)",
		}

	case strings.Contains(msg, "isn't an item") || strings.Contains(msg, "could not be found"):
		return &NotFoundError{Reference: reference, Backend: "1Password"}

	case strings.Contains(msg, "isn't a vault") || (strings.Contains(msg, "vault") && strings.Contains(msg, "not found")):
		vault := strings.SplitN(strings.TrimPrefix(reference, "op://"), "/", 2)[0]
		return &BackendError{
			Backend:   "1Password",
			Reference: reference,
			Reason:    "vault not found or not accessible",
			Fix:       "Check that the service account can read vault \"" + vault + "\" (op vault list).",
		}
	}

	return &BackendError{
		Backend:   "1Password",
		Reference: reference,
		Reason:    strings.TrimSpace(msg),
	}
}

func init() {
	Register(&OnePasswordResolver{})
}
