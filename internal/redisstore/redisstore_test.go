package redisstore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/video-uploader/progress"
)

var _ progress.Store = &Store{}

func TestStore(t *testing.T) {
	assert := assert_.New(t)
	ctx := context.Background()
	server := miniredis.RunT(t)

	store, err := Open(ctx, "redis://"+server.Addr())
	require.Nil(t, err)
	defer store.Close()

	item, err := store.GetItem(ctx, "/videos/a.mp4")
	assert.Nil(err)
	assert.True(item.IsNone())

	tracker := progress.NewTracker(ctx, store, "/videos/a.mp4", 100)
	tracker.Add(50)
	assert.Nil(tracker.Fail(errors.New("550 permission denied")))

	raw, err := server.Get(DefaultKeyPrefix + "/videos/a.mp4")
	assert.Nil(err)
	record, err := progress.Decode(raw)
	assert.Nil(err)
	assert.Equal(progress.StatusError, record.Status)
	assert.Equal("550 permission denied", record.ErrorMessage)

	// Records don't expire
	assert.Equal(int64(0), int64(server.TTL(DefaultKeyPrefix+"/videos/a.mp4")))
}

func TestOpen_Unreachable(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()
	_, err := Open(context.Background(), "redis://"+addr)
	assert_.Error(t, err)
}
