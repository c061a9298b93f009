package progressapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/video-uploader/generic"
	"github.com/alanbriolat/video-uploader/progress"
)

type brokenStore struct{}

func (brokenStore) SetItem(context.Context, string, string) error {
	return errors.New("store unavailable")
}

func (brokenStore) GetItem(context.Context, string) (generic.Option[string], error) {
	return generic.None[string](), errors.New("store unavailable")
}

func get(router *gin.Engine, id string) *httptest.ResponseRecorder {
	target := "/progress"
	if id != "" {
		target += "?id=" + url.QueryEscape(id)
	}
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestGet(t *testing.T) {
	assert := assert_.New(t)
	gin.SetMode(gin.TestMode)
	store := progress.NewMemoryStore()
	require.Nil(t, progress.Put(context.Background(), store, "/videos/a b.mp4", progress.Record{
		Total: 1000, Loaded: 400, Status: progress.StatusProcessing,
	}))
	router := NewRouter(store)

	resp := get(router, "/videos/a b.mp4")
	assert.Equal(http.StatusOK, resp.Code)
	assert.JSONEq(`{"total":1000,"loaded":400,"status":"processing"}`, resp.Body.String())

	resp = get(router, "/videos/other.mp4")
	assert.Equal(http.StatusNotFound, resp.Code)

	resp = get(router, "")
	assert.Equal(http.StatusBadRequest, resp.Code)
}

func TestGet_ErrorRecord(t *testing.T) {
	assert := assert_.New(t)
	gin.SetMode(gin.TestMode)
	store := progress.NewMemoryStore()
	require.Nil(t, progress.Put(context.Background(), store, "x.mp4", progress.ErrorRecord(10, 5, errors.New("boom"))))

	resp := get(NewRouter(store), "x.mp4")
	assert.Equal(http.StatusOK, resp.Code)
	var record progress.Record
	require.Nil(t, json.Unmarshal(resp.Body.Bytes(), &record))
	assert.Equal(progress.StatusError, record.Status)
	assert.Equal("boom", record.ErrorMessage)
}

func TestGet_StoreFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resp := get(NewRouter(brokenStore{}), "x.mp4")
	assert_.Equal(t, http.StatusInternalServerError, resp.Code)
}
