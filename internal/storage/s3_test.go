package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sincere-abayo/advocate-management-system/internal/config"
)

func TestNilS3IsNotConfigured(t *testing.T) {
	var s *S3
	_, err := s.SignedURL(context.Background(), "cases/x/a.pdf", time.Minute)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = s.Stat(context.Background(), "cases/x/a.pdf")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewS3WithoutBucket(t *testing.T) {
	s, err := NewS3(context.Background(), &config.Config{})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestPresignGetObject(t *testing.T) {
	s, err := NewS3(context.Background(), &config.Config{
		S3Endpoint:        "http://localhost:9000",
		S3Region:          "auto",
		S3AccessKeyID:     "key",
		S3SecretAccessKey: "secret",
		S3Bucket:          "documents",
	})
	require.NoError(t, err)
	require.NotNil(t, s)

	url, err := s.SignedURL(context.Background(), "cases/abc/brief.pdf", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "http://localhost:9000/documents/cases/abc/brief.pdf")
	assert.Contains(t, url, "X-Amz-Expires=60")
}

func TestObjectKeys(t *testing.T) {
	id := uuid.New()
	key := ObjectKey(id, "../../etc/passwd")
	assert.Equal(t, "cases/"+id.String()+"/passwd", key)
	assert.True(t, BelongsTo(key, id))
	assert.False(t, BelongsTo("cases/"+id.String()+"/../other/x.pdf", id))
	assert.False(t, BelongsTo("cases/"+uuid.NewString()+"/x.pdf", id))
	assert.False(t, BelongsTo("cases/"+id.String()+"/nested/x.pdf", id))
	assert.False(t, BelongsTo("cases/"+id.String()+"/", id))
}
