package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filedrop/internal/db"
)

func storedPath(env *testEnv, rec db.File) string {
	return filepath.Join(env.uploadRoot, "2024-03-07", rec.Filename)
}

func decodeDelete(t *testing.T, rr *httptest.ResponseRecorder) deleteResp {
	t.Helper()
	var resp deleteResp
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp
}

func TestDeleteByID(t *testing.T) {
	env := newTestEnv(t)
	rec := uploadOne(t, env, "a.png", "image/png", []byte("abc"))
	require.FileExists(t, storedPath(env, rec))

	rr := env.do(authed(httptest.NewRequest(http.MethodDelete, "/delete/"+rec.ID, nil)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decodeDelete(t, rr)
	assert.Equal(t, "File deleted successfully", resp.Message)
	require.NotNil(t, resp.File)
	assert.Equal(t, rec.ID, resp.File.ID)
	assert.Equal(t, rec.Filename, resp.File.Filename)

	assert.NoFileExists(t, storedPath(env, rec))
	assert.Zero(t, env.store.count())

	rr = env.do(authed(httptest.NewRequest(http.MethodGet, "/"+rec.ID, nil)))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = env.do(httptest.NewRequest(http.MethodGet, "/files/"+rec.Path, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteByID_MissingID(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/delete", "/delete/"} {
		rr := env.do(authed(httptest.NewRequest(http.MethodDelete, path, nil)))
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
		assert.JSONEq(t, `{"message":"File ID is required"}`, rr.Body.String())
	}
}

func TestDeleteByID_NotFound(t *testing.T) {
	env := newTestEnv(t)
	uploadOne(t, env, "a.png", "image/png", []byte("abc"))

	rr := env.do(authed(httptest.NewRequest(http.MethodDelete, "/delete/ffffffffffffffffffffffff", nil)))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"message":"File not found"}`, rr.Body.String())
	assert.Equal(t, 1, env.store.count())
}

func TestDeleteByID_FileAlreadyGone(t *testing.T) {
	env := newTestEnv(t)
	rec := uploadOne(t, env, "a.png", "image/png", []byte("abc"))
	require.NoError(t, os.Remove(storedPath(env, rec)))

	rr := env.do(authed(httptest.NewRequest(http.MethodDelete, "/delete/"+rec.ID, nil)))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, env.store.count())
}

func TestDeleteByID_StorageErrorKeepsRecord(t *testing.T) {
	env := newTestEnv(t)
	rec := uploadOne(t, env, "a.png", "image/png", []byte("abc"))
	env.blob.removeErr = errors.New("permission denied")

	rr := env.do(authed(httptest.NewRequest(http.MethodDelete, "/delete/"+rec.ID, nil)))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "permission denied")
	assert.Equal(t, 1, env.store.count())
	assert.FileExists(t, storedPath(env, rec))
}

func TestDeleteByPassphrase(t *testing.T) {
	env := newTestEnv(t)
	keep := uploadOne(t, env, "keep.png", "image/png", []byte("k"))
	rec := uploadOne(t, env, "a.png", "image/png", []byte("abc"))
	require.NotEqual(t, keep.PassphraseCode, rec.PassphraseCode)

	rr := env.do(authed(httptest.NewRequest(http.MethodDelete,
		"/delete-passphrase?code="+url.QueryEscape(rec.PassphraseCode), nil)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decodeDelete(t, rr)
	assert.Equal(t, rec.ID, resp.File.ID)
	assert.NoFileExists(t, storedPath(env, rec))
	assert.FileExists(t, storedPath(env, keep))
	assert.Equal(t, 1, env.store.count())
}

func TestDeleteByPassphrase_ExactMatchOnly(t *testing.T) {
	env := newTestEnv(t)
	rec := uploadOne(t, env, "a.png", "image/png", []byte("abc"))

	for _, code := range []string{
		"alpha bravo",
		rec.PassphraseCode + " ",
		"ALPHA BRAVO 1",
		"alpha  bravo 1",
	} {
		rr := env.do(authed(httptest.NewRequest(http.MethodDelete,
			"/delete-passphrase?code="+url.QueryEscape(code), nil)))
		assert.Equal(t, http.StatusNotFound, rr.Code, "code %q", code)
	}
	assert.Equal(t, 1, env.store.count())
	assert.FileExists(t, storedPath(env, rec))
}

func TestDeleteByPassphrase_MissingCode(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/delete-passphrase", "/delete-passphrase?code="} {
		rr := env.do(authed(httptest.NewRequest(http.MethodDelete, path, nil)))
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
		assert.JSONEq(t, `{"message":"Passphrase code is required"}`, rr.Body.String())
	}
}

func TestDeleteByPassphrase_RecordWithoutPassphrase(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Create(t.Context(), &db.File{Filename: "x.png", Path: "storages/uploads/2024-03-07/x.png"}))

	rr := env.do(authed(httptest.NewRequest(http.MethodDelete, "/delete-passphrase?code=%20", nil)))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, 1, env.store.count())
}

func TestDelete_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.store.findErr = errors.New("socket closed")

	rr := env.do(authed(httptest.NewRequest(http.MethodDelete, "/delete/000000000000000000000001", nil)))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), `"message":"Internal Server Error"`)
}
