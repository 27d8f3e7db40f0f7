package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDynamoClient(t *testing.T) {
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "local")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "local")

	client, err := NewDynamoClient(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, client.Options().BaseEndpoint)
	assert.Equal(t, "eu-west-1", client.Options().Region)

	client, err = NewDynamoClient(context.Background(), "http://localhost:8000")
	require.NoError(t, err)
	require.NotNil(t, client.Options().BaseEndpoint)
	assert.Equal(t, "http://localhost:8000", *client.Options().BaseEndpoint)
}
