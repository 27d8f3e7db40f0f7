package config

import (
	"context"
	"fmt"
	"path"
	"strings"

	"coaproxy/internal/db"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

func NewSSMClient(ctx context.Context) (*ssm.Client, error) {
	cfg, err := db.LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return ssm.NewFromConfig(cfg), nil
}

// MergeSSMParameters fills environ with every parameter stored directly under
// prefix, keyed by the last path segment (/coa/prod/KV_TOKEN -> KV_TOKEN).
// Variables already present in the environment win.
func MergeSSMParameters(ctx context.Context, client ssm.GetParametersByPathAPIClient, prefix string, environ map[string]string) error {
	prefix = "/" + strings.Trim(prefix, "/")

	p := ssm.NewGetParametersByPathPaginator(client, &ssm.GetParametersByPathInput{
		Path:           aws.String(prefix),
		WithDecryption: aws.Bool(true),
	})

	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("ssm get parameters by path %s: %w", prefix, err)
		}
		for _, param := range page.Parameters {
			key := path.Base(aws.ToString(param.Name))
			if key == "" || key == "/" || key == "." {
				continue
			}
			if _, exists := environ[key]; exists {
				continue
			}
			environ[key] = aws.ToString(param.Value)
		}
	}
	return nil
}
