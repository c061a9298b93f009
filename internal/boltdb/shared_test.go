package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/video-uploader/progress"
)

func TestShared_ReadersDuringUpload(t *testing.T) {
	assert := assert_.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "progress.db")
	opts := Options{Timeout: 100 * time.Millisecond}

	writer, err := OpenShared(path, opts)
	require.Nil(t, err)
	defer writer.Close()
	reader, err := OpenShared(path, Options{ReadOnly: true, Timeout: opts.Timeout})
	require.Nil(t, err)

	tracker := progress.NewTracker(ctx, writer, "/videos/a.mp4", 100)
	for i := 0; i < 10; i++ {
		tracker.Add(10)
		record, err := progress.Get(ctx, reader, "/videos/a.mp4")
		require.Nil(t, err)
		assert.Equal(int64(10*(i+1)), record.Value.Loaded)
	}

	items, err := reader.List(ctx)
	assert.Nil(err)
	assert.Len(items, 1)
	assert.ErrorIs(reader.SetItem(ctx, "/videos/a.mp4", "{}"), ErrReadOnly)
}

func TestShared_Busy(t *testing.T) {
	assert := assert_.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "progress.db")

	held, err := New(path, Options{})
	require.Nil(t, err)
	reader, err := OpenShared(path, Options{ReadOnly: true, Timeout: 50 * time.Millisecond})
	require.Nil(t, err)

	_, err = reader.GetItem(ctx, "/videos/a.mp4")
	assert.ErrorIs(err, ErrBusy)
	_, err = reader.List(ctx)
	assert.ErrorIs(err, ErrBusy)
	_, err = OpenShared(path, Options{Timeout: 50 * time.Millisecond})
	assert.ErrorIs(err, ErrBusy)

	require.Nil(t, held.Close())
	item, err := reader.GetItem(ctx, "/videos/a.mp4")
	assert.Nil(err)
	assert.True(item.IsNone())
}

func TestShared_WriterRemembersItsRecords(t *testing.T) {
	assert := assert_.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "progress.db")

	writer, err := OpenShared(path, Options{Timeout: 50 * time.Millisecond})
	require.Nil(t, err)
	require.Nil(t, writer.SetItem(ctx, "/videos/a.mp4", `{"status":"init"}`))
	item, err := writer.GetItem(ctx, "/videos/b.mp4")
	require.Nil(t, err)
	assert.True(item.IsNone())

	// Reads are answered without the file while another process has it locked
	held, err := New(path, Options{})
	require.Nil(t, err)
	defer held.Close()
	item, err = writer.GetItem(ctx, "/videos/a.mp4")
	assert.Nil(err)
	assert.Equal(`{"status":"init"}`, item.UnwrapOr(""))
	item, err = writer.GetItem(ctx, "/videos/b.mp4")
	assert.Nil(err)
	assert.True(item.IsNone())
	assert.ErrorIs(writer.SetItem(ctx, "/videos/a.mp4", "{}"), ErrBusy)
}

func TestShared_MissingFile(t *testing.T) {
	ctx := context.Background()
	reader, err := OpenShared(filepath.Join(t.TempDir(), "progress.db"), Options{ReadOnly: true})
	require.Nil(t, err)
	items, err := reader.List(ctx)
	assert_.Nil(t, err)
	assert_.Empty(t, items)
}
