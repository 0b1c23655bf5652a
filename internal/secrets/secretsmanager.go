package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerResolver resolves AWS Secrets Manager references:
//
//	awssm:///secret-id
//	awssm://us-east-1/secret-id
//	awssm:///secret-id#json-key
//
// The fragment selects one key of a JSON secret, which is how Secrets
// Manager usually stores database credentials.
type SecretsManagerResolver struct {
	// NewClient builds a client for region ("" = SDK default chain).
	// Nil uses the AWS SDK default configuration.
	NewClient func(ctx context.Context, region string) (SecretsManagerAPI, error)
}

// Scheme returns "awssm".
func (r *SecretsManagerResolver) Scheme() string {
	return "awssm"
}

// Resolve fetches the secret and, when a fragment is given, extracts that key.
func (r *SecretsManagerResolver) Resolve(ctx context.Context, reference string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ref, err := parseSecretsManagerReference(reference)
	if err != nil {
		return "", err
	}

	newClient := r.NewClient
	if newClient == nil {
		newClient = defaultSecretsManagerClient
	}
	client, err := newClient(ctx, ref.region)
	if err != nil {
		return "", &BackendError{
			Backend:   "AWS Secrets Manager",
			Reference: reference,
			Reason:    "loading AWS config failed",
			Cause:     err,
		}
	}

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(ref.secretID),
	})
	if err != nil {
		return "", classifySecretsManagerError(err, reference, ref.secretID)
	}

	var value string
	switch {
	case out.SecretString != nil:
		value = *out.SecretString
	case out.SecretBinary != nil:
		value = string(out.SecretBinary)
	default:
		return "", &NotFoundError{Reference: reference, Backend: "AWS Secrets Manager"}
	}

	if ref.key == "" {
		return value, nil
	}
	return extractJSONKey(value, ref.key, reference)
}

type secretsManagerRef struct {
	region   string
	secretID string
	key      string
}

func parseSecretsManagerReference(reference string) (secretsManagerRef, error) {
	u, err := url.Parse(reference)
	if err != nil {
		return secretsManagerRef{}, &InvalidReferenceError{Reference: reference, Reason: "invalid URI"}
	}
	if u.Scheme != "awssm" {
		return secretsManagerRef{}, &InvalidReferenceError{Reference: reference, Reason: "expected awssm:// scheme"}
	}

	id := strings.TrimPrefix(u.Path, "/")
	if id == "" {
		return secretsManagerRef{}, &InvalidReferenceError{Reference: reference, Reason: "secret id is empty"}
	}
	return secretsManagerRef{region: u.Host, secretID: id, key: u.Fragment}, nil
}

func extractJSONKey(value, key, reference string) (string, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(value), &fields); err != nil {
		return "", &InvalidReferenceError{Reference: reference, Reason: "secret is not a JSON object, cannot select key " + key}
	}
	v, ok := fields[key]
	if !ok {
		return "", &NotFoundError{Reference: reference, Backend: "AWS Secrets Manager"}
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(t), nil
	}
}

func classifySecretsManagerError(err error, reference, secretID string) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return &NotFoundError{Reference: reference, Backend: "AWS Secrets Manager"}
	}

	be := &BackendError{
		Backend:   "AWS Secrets Manager",
		Reference: reference,
		Reason:    err.Error(),
		Cause:     err,
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		be.Reason = apiErr.ErrorMessage()
		switch apiErr.ErrorCode() {
		case "AccessDeniedException":
			be.Reason = "access denied"
			be.Fix = "Grant secretsmanager:GetSecretValue on " + secretID + " to the job's role."
		case "ExpiredTokenException", "ExpiredToken":
			be.Reason = "AWS credentials expired"
			be.Fix = "Refresh the job's credentials (e.g. aws-actions/configure-aws-credentials)."
		}
	}
	return be
}

func defaultSecretsManagerClient(ctx context.Context, region string) (SecretsManagerAPI, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return secretsmanager.NewFromConfig(awsCfg), nil
}

func init() {
	Register(&SecretsManagerResolver{})
}
