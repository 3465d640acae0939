package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/colorvariant-harvester/internal/entity"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "harvest:group:マリオ", GroupKey("マリオ"))

	a := ImageKey("https://smashwiki.info/a.png")
	assert.Equal(t, a, ImageKey("https://smashwiki.info/a.png"))
	assert.NotEqual(t, a, ImageKey("https://smashwiki.info/b.png"))
	assert.Len(t, a, len(imageKeyPrefix)+64)
}

func TestCatalogRepo_RoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	repo := NewCatalogRepo(client)
	group := "テスト-" + uuid.NewString()
	run := &entity.RunSummary{RunID: uuid.NewString(), PageURL: "https://example.com", StartedAt: time.Now()}
	t.Cleanup(func() {
		client.Del(ctx, runKey(run.RunID), GroupKey(group), ImageKey("https://example.com/"+group+".png"))
		client.SRem(ctx, groupsKey, group)
	})

	require.NoError(t, repo.StartRun(ctx, run))
	require.NoError(t, repo.RecordImage(ctx, run.RunID, &entity.SavedImage{
		Descriptor: entity.ImageDescriptor{Group: group, Index: 3, SourceURL: "https://example.com/" + group + ".png"},
		Path:       "/out/" + group + "/003.png",
		Bytes:      42,
		SHA256:     "abc",
		SavedAt:    time.Now(),
	}))
	run.FinishedAt = time.Now()
	run.Images = 1
	require.NoError(t, repo.FinishRun(ctx, run))

	groups, err := repo.Groups(ctx)
	require.NoError(t, err)
	assert.Contains(t, groups, group)

	images, err := repo.GroupImages(ctx, group)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"003": "/out/" + group + "/003.png"}, images)

	images1, err := client.HGet(ctx, runKey(run.RunID), "images").Result()
	require.NoError(t, err)
	assert.Equal(t, "1", images1)
}
