package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretsManager struct {
	secrets map[string]*secretsmanager.GetSecretValueOutput
	err     error
	gotID   string
}

func (f *fakeSecretsManager) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.gotID = aws.ToString(in.SecretId)
	if f.err != nil {
		return nil, f.err
	}
	out, ok := f.secrets[f.gotID]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	return out, nil
}

func newTestSecretsManagerResolver(fake *fakeSecretsManager, gotRegion *string) *SecretsManagerResolver {
	return &SecretsManagerResolver{
		NewClient: func(ctx context.Context, region string) (SecretsManagerAPI, error) {
			if gotRegion != nil {
				*gotRegion = region
			}
			return fake, nil
		},
	}
}

func TestParseSecretsManagerReference(t *testing.T) {
	tests := []struct {
		ref     string
		want    secretsManagerRef
		wantErr bool
	}{
		{ref: "awssm:///ci/superset", want: secretsManagerRef{secretID: "ci/superset"}},
		{ref: "awssm://eu-central-1/ci/superset", want: secretsManagerRef{region: "eu-central-1", secretID: "ci/superset"}},
		{ref: "awssm:///ci/warehouse#password", want: secretsManagerRef{secretID: "ci/warehouse", key: "password"}},
		{ref: "awssm:///", wantErr: true},
		{ref: "awssm://us-east-1", wantErr: true},
		{ref: "ssm:///ci/superset", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := parseSecretsManagerReference(tt.ref)
			if tt.wantErr {
				var invalid *InvalidReferenceError
				assert.True(t, errors.As(err, &invalid), "expected InvalidReferenceError, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSecretsManagerResolver_Resolve(t *testing.T) {
	fake := &fakeSecretsManager{secrets: map[string]*secretsmanager.GetSecretValueOutput{
		"ci/superset":  {SecretString: aws.String("plain-secret")},
		"ci/warehouse": {SecretString: aws.String(`{"username":"etl","password":"wh-pass","port":5432}`)},
		"ci/binary":    {SecretBinary: []byte("bin-secret")},
	}}
	var region string
	r := newTestSecretsManagerResolver(fake, &region)

	tests := []struct {
		ref        string
		want       string
		wantRegion string
	}{
		{"awssm:///ci/superset", "plain-secret", ""},
		{"awssm://us-west-2/ci/superset", "plain-secret", "us-west-2"},
		{"awssm:///ci/warehouse#password", "wh-pass", ""},
		{"awssm:///ci/warehouse#port", "5432", ""},
		{"awssm:///ci/binary", "bin-secret", ""},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantRegion, region)
		})
	}
}

func TestSecretsManagerResolver_Errors(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		r := newTestSecretsManagerResolver(&fakeSecretsManager{}, nil)
		_, err := r.Resolve(context.Background(), "awssm:///nope")

		var notFound *NotFoundError
		require.True(t, errors.As(err, &notFound), "expected NotFoundError, got %v", err)
		assert.Equal(t, "AWS Secrets Manager", notFound.Backend)
	})

	t.Run("missing json key", func(t *testing.T) {
		fake := &fakeSecretsManager{secrets: map[string]*secretsmanager.GetSecretValueOutput{
			"ci/warehouse": {SecretString: aws.String(`{"username":"etl"}`)},
		}}
		r := newTestSecretsManagerResolver(fake, nil)
		_, err := r.Resolve(context.Background(), "awssm:///ci/warehouse#password")

		var notFound *NotFoundError
		assert.True(t, errors.As(err, &notFound), "expected NotFoundError, got %v", err)
	})

	t.Run("key on non-json secret", func(t *testing.T) {
		fake := &fakeSecretsManager{secrets: map[string]*secretsmanager.GetSecretValueOutput{
			"ci/superset": {SecretString: aws.String("plain")},
		}}
		r := newTestSecretsManagerResolver(fake, nil)
		_, err := r.Resolve(context.Background(), "awssm:///ci/superset#password")

		var invalid *InvalidReferenceError
		assert.True(t, errors.As(err, &invalid), "expected InvalidReferenceError, got %v", err)
	})

	t.Run("access denied", func(t *testing.T) {
		fake := &fakeSecretsManager{err: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "denied"}}
		r := newTestSecretsManagerResolver(fake, nil)
		_, err := r.Resolve(context.Background(), "awssm:///ci/superset")

		var be *BackendError
		require.True(t, errors.As(err, &be), "expected BackendError, got %v", err)
		assert.Equal(t, "access denied", be.Reason)
		assert.Contains(t, be.Fix, "secretsmanager:GetSecretValue on ci/superset")

		var apiErr smithy.APIError
		assert.True(t, errors.As(err, &apiErr), "cause should stay reachable")
	})

	t.Run("client construction fails", func(t *testing.T) {
		r := &SecretsManagerResolver{
			NewClient: func(context.Context, string) (SecretsManagerAPI, error) {
				return nil, errors.New("no region")
			},
		}
		_, err := r.Resolve(context.Background(), "awssm:///ci/superset")

		var be *BackendError
		require.True(t, errors.As(err, &be), "expected BackendError, got %v", err)
		assert.Contains(t, err.Error(), "loading AWS config")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := newTestSecretsManagerResolver(&fakeSecretsManager{}, nil)
		_, err := r.Resolve(ctx, "awssm:///ci/superset")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
