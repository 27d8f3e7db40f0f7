package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"SHOPIFY_API_KEY":      "key",
		"SHOPIFY_API_SECRET":   "secret",
		"SHOPIFY_REDIRECT_URI": "https://coa.example.com/auth/callback",
		"KV_URL":               "redis://localhost:6379/0",
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(baseEnv())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, BackendRedis, cfg.Credentials.Backend)
	assert.Equal(t, ModePersist, cfg.Credentials.Mode)
	assert.Equal(t, 50, cfg.COA.PageSize)
	assert.Equal(t, 3, cfg.COA.MaxAttempts)
	assert.Equal(t, time.Second, cfg.COA.RetryBaseDelay)
	assert.Equal(t, "coa", cfg.COA.MetaobjectType)
	assert.Equal(t, 30*time.Second, cfg.Shopify.HTTPTimeout)
	assert.True(t, cfg.MultiTenant())
	assert.False(t, cfg.HTTP.DebugAPIEnabled)
	assert.Equal(t, 7*24*time.Hour, cfg.HTTP.WebhookDedupeTTL)
	assert.Zero(t, cfg.HTTP.WriteTimeout, "responses are unbounded unless configured")
}

func TestParse_WriteTimeout(t *testing.T) {
	environ := baseEnv()
	environ["HTTP_WRITE_TIMEOUT"] = "5m"
	cfg, err := Parse(environ)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.HTTP.WriteTimeout)

	environ["HTTP_WRITE_TIMEOUT"] = "-1s"
	_, err = Parse(environ)
	require.Error(t, err)
}

func TestParse_MissingRequired(t *testing.T) {
	for _, key := range []string{"SHOPIFY_API_KEY", "SHOPIFY_API_SECRET", "SHOPIFY_REDIRECT_URI"} {
		t.Run(key, func(t *testing.T) {
			environ := baseEnv()
			delete(environ, key)

			_, err := Parse(environ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestParse_BackendRequirements(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]string)
		wantErr string
	}{
		{
			name:    "redis without url",
			mutate:  func(e map[string]string) { delete(e, "KV_URL") },
			wantErr: "KV_URL",
		},
		{
			name: "dynamodb without table",
			mutate: func(e map[string]string) {
				e["CREDENTIAL_BACKEND"] = BackendDynamoDB
			},
			wantErr: "CREDENTIALS_TABLE",
		},
		{
			name: "static without token",
			mutate: func(e map[string]string) {
				e["CREDENTIAL_BACKEND"] = BackendStatic
				e["CREDENTIAL_MODE"] = ModeDisplay
				e["SHOPIFY_SHOP"] = "acme.example.com"
			},
			wantErr: "SHOPIFY_ACCESS_TOKEN",
		},
		{
			name: "static with persist mode",
			mutate: func(e map[string]string) {
				e["CREDENTIAL_BACKEND"] = BackendStatic
				e["SHOPIFY_SHOP"] = "acme.example.com"
				e["SHOPIFY_ACCESS_TOKEN"] = "shpat_x"
			},
			wantErr: "CREDENTIAL_MODE=persist",
		},
		{
			name:    "debug api without shop",
			mutate:  func(e map[string]string) { e["DEBUG_API_ENABLED"] = "true" },
			wantErr: "SHOPIFY_SHOP",
		},
		{
			name:    "bad encryption key",
			mutate:  func(e map[string]string) { e["TOKEN_ENC_KEY_B64"] = "c2hvcnQ=" },
			wantErr: "TOKEN_ENC_KEY_B64",
		},
		{
			name:    "unknown backend",
			mutate:  func(e map[string]string) { e["CREDENTIAL_BACKEND"] = "postgres" },
			wantErr: "Backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			environ := baseEnv()
			tt.mutate(environ)

			_, err := Parse(environ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_SingleTenant(t *testing.T) {
	environ := baseEnv()
	environ["CREDENTIAL_BACKEND"] = BackendStatic
	environ["CREDENTIAL_MODE"] = ModeDisplay
	environ["SHOPIFY_SHOP"] = " Acme.Example.com "
	environ["SHOPIFY_ACCESS_TOKEN"] = "shpat_x"
	environ["ALLOWED_ORIGINS"] = "https://acme.example.com, ,https://admin.shopify.com"

	cfg, err := Parse(environ)
	require.NoError(t, err)

	assert.Equal(t, "acme.example.com", cfg.Shopify.Shop)
	assert.False(t, cfg.MultiTenant())
	assert.Equal(t, []string{"https://acme.example.com", "https://admin.shopify.com"}, cfg.HTTP.AllowedOrigins)
}

type fakeSSM struct {
	pages [][]ssmtypes.Parameter
	calls int
	err   error
}

func (f *fakeSSM) GetParametersByPath(ctx context.Context, in *ssm.GetParametersByPathInput, _ ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls
	f.calls++

	out := &ssm.GetParametersByPathOutput{Parameters: f.pages[idx]}
	if idx+1 < len(f.pages) {
		out.NextToken = aws.String("next")
	}
	return out, nil
}

func TestMergeSSMParameters(t *testing.T) {
	client := &fakeSSM{pages: [][]ssmtypes.Parameter{
		{
			{Name: aws.String("/coa/prod/SHOPIFY_API_SECRET"), Value: aws.String("from-ssm")},
			{Name: aws.String("/coa/prod/KV_TOKEN"), Value: aws.String("kv-token")},
		},
		{
			{Name: aws.String("/coa/prod/SHOPIFY_API_KEY"), Value: aws.String("ignored")},
		},
	}}

	environ := map[string]string{"SHOPIFY_API_KEY": "from-env"}
	err := MergeSSMParameters(context.Background(), client, "coa/prod/", environ)
	require.NoError(t, err)

	assert.Equal(t, 2, client.calls)
	assert.Equal(t, "from-ssm", environ["SHOPIFY_API_SECRET"])
	assert.Equal(t, "kv-token", environ["KV_TOKEN"])
	assert.Equal(t, "from-env", environ["SHOPIFY_API_KEY"])
}

func TestMergeSSMParameters_Error(t *testing.T) {
	client := &fakeSSM{err: errors.New("access denied")}

	err := MergeSSMParameters(context.Background(), client, "/coa", map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
