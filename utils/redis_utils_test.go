package utils

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRedisClient(t *testing.T) {
	s := miniredis.RunT(t)
	t.Setenv("REDIS_HOST", s.Host())
	t.Setenv("REDIS_PORT", s.Port())
	t.Setenv("REDIS_PASSWD", "")

	client, err := GetRedisClient(context.Background())
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Set(context.Background(), "k", RedisTrue, 0).Err())
}

func TestRedisKeyParser(t *testing.T) {
	p := NewRedisKeyParser("_")
	validUserId := "valid-user-id"
	validCompanyId := "valid-company-id"
	expectedKey := "following_valid-user-id_valid-company-id"

	assert.True(t, p.ValidateId(validUserId))
	assert.False(t, p.ValidateId("invalid_user_id"))
	assert.False(t, p.ValidateId(""))

	k, err := p.EncodeKey("following", validUserId, validCompanyId)
	assert.Nil(t, err)
	assert.Equal(t, expectedKey, k)

	_, err = p.EncodeKey("following", "invalid_user_id")
	assert.NotNil(t, err)

	ids, err := p.DecodeKey("following", expectedKey)
	assert.Nil(t, err)
	assert.Equal(t, []string{validUserId, validCompanyId}, ids)

	_, err = p.DecodeKey("other", expectedKey)
	assert.NotNil(t, err)
}
