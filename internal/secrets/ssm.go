package secrets

import (
	"bytes"
	"context"
	"net/url"
	"os/exec"
	"strings"
)

// SSMResolver resolves AWS Systems Manager Parameter Store references
// (ssm:///path or ssm://region/path) with the aws CLI, which GitHub-hosted
// runners ship with.
type SSMResolver struct{}

// Scheme returns "ssm".
func (r *SSMResolver) Scheme() string {
	return "ssm"
}

// Resolve runs `aws ssm get-parameter --with-decryption`.
func (r *SSMResolver) Resolve(ctx context.Context, reference string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	region, name, err := parseSSMReference(reference)
	if err != nil {
		return "", err
	}

	if _, err := exec.LookPath("aws"); err != nil {
		return "", &BackendError{
			Backend:   "AWS SSM",
			Reference: reference,
			Reason:    "aws CLI not found in PATH",
			Fix:       "Install the AWS CLI, or store the value in Secrets Manager and use awssm://.",
		}
	}

	args := []string{
		"ssm", "get-parameter",
		"--name", name,
		"--with-decryption",
		"--query", "Parameter.Value",
		"--output", "text",
	}
	if region != "" {
		args = append(args, "--region", region)
	}

	cmd := exec.CommandContext(ctx, "aws", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", r.classify(stderr.String(), reference, name)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// parseSSMReference splits an ssm:// URI into region (may be empty) and
// parameter name, which must be absolute.
func parseSSMReference(ref string) (region, name string, err error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", "", &InvalidReferenceError{Reference: ref, Reason: "invalid URI"}
	}
	if u.Scheme != "ssm" {
		return "", "", &InvalidReferenceError{Reference: ref, Reason: "expected ssm:// scheme"}
	}
	if u.Path == "" || u.Path[0] != '/' {
		return "", "", &InvalidReferenceError{Reference: ref, Reason: "parameter path must start with /"}
	}
	return u.Host, u.Path, nil
}

// classify maps aws CLI stderr to a typed error.
func (r *SSMResolver) classify(msg, reference, name string) error {
	switch {
	case strings.Contains(msg, "ParameterNotFound"):
		return &NotFoundError{Reference: reference, Backend: "AWS SSM"}

	case strings.Contains(msg, "AccessDeniedException"):
		return &BackendError{
			Backend:   "AWS SSM",
			Reference: reference,
			Reason:    "access denied",
			Fix:       "Grant ssm:GetParameter on " + name + " to the job's role.",
		}

	case strings.Contains(msg, "ExpiredToken"):
		return &BackendError{
			Backend:   "AWS SSM",
			Reference: reference,
			Reason:    "AWS credentials expired",
			Fix:       "Refresh the job's credentials (e.g. aws-actions/configure-aws-credentials).",
		}

	case strings.Contains(msg, "Unable to locate credentials"):
		return &BackendError{
			Backend:   "AWS SSM",
			Reference: reference,
			Reason:    "no AWS credentials found",
			Fix:       "Configure credentials for the job, or set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY.",
		}

	case strings.Contains(msg, "Could not connect to the endpoint URL"):
		return &BackendError{
			Backend:   "AWS SSM",
			Reference: reference,
			Reason:    "could not connect to AWS endpoint",
			Fix:       "Check the region in the reference and network connectivity.",
		}
	}

	return &BackendError{
		Backend:   "AWS SSM",
		Reference: reference,
		Reason:    strings.TrimSpace(msg),
	}
}

func init() {
	Register(&SSMResolver{})
}
