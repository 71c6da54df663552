package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"container-tracker/containers/models"
	"container-tracker/containers/repositories"
	"container-tracker/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{})
	require.NoError(t, err, "Failed to create test database")
	require.NoError(t, db.AutoMigrate(&models.Container{}))

	m, err := metrics.New()
	require.NoError(t, err)
	return NewServer(repositories.NewRepository(db), zap.NewNop(), m)
}

func doRequest(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func createContainer(t *testing.T, s *Server, body string) uint {
	t.Helper()
	rec := doRequest(t, s, http.MethodPost, "/api/containers", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[CreateContainerResponse](t, rec).ID
}

func TestCreateThenRetrieve(t *testing.T) {
	s := setupTestServer(t)

	id := createContainer(t, s, `{"container_number":"MSKU1234565","iso_code":"45G1","other_info":"gate 2"}`)

	rec := doRequest(t, s, http.MethodGet, "/api/containers/"+itoa(id), "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.Container](t, rec)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "MSKU1234565", got.ContainerNumber)
	assert.Equal(t, "45G1", got.ISOCode)
	assert.Equal(t, "gate 2", got.OtherInfo)
	assert.True(t, got.CreatedAt.Equal(got.UpdatedAt))

	rec = doRequest(t, s, http.MethodGet, "/api/containers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]models.Container](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
}

func TestCreateValidation(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing number", `{"iso_code":"45G1"}`},
		{"empty number", `{"container_number":""}`},
		{"empty body", ``},
		{"malformed json", `{"container_number":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/containers", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestCreateDuplicateConflicts(t *testing.T) {
	s := setupTestServer(t)

	first := doRequest(t, s, http.MethodPost, "/api/containers", `{"container_number":"TGHU9876543"}`)
	second := doRequest(t, s, http.MethodPost, "/api/containers", `{"container_number":"TGHU9876543"}`)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, "container with this number already exists", decode[map[string]string](t, second)["error"])
}

func TestGetUnknownOrMalformedID(t *testing.T) {
	s := setupTestServer(t)

	assert.Equal(t, http.StatusNotFound, doRequest(t, s, http.MethodGet, "/api/containers/99", "").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(t, s, http.MethodGet, "/api/containers/abc", "").Code)
}

func TestUpdateOtherInfoKeepsIdentity(t *testing.T) {
	s := setupTestServer(t)
	id := createContainer(t, s, `{"container_number":"MSKU1234565","iso_code":"22G1"}`)

	before := decode[models.Container](t, doRequest(t, s, http.MethodGet, "/api/containers/"+itoa(id), ""))
	time.Sleep(5 * time.Millisecond)

	rec := doRequest(t, s, http.MethodPut, "/api/containers/"+itoa(id), `{"other_info":"reefer"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[UpdateContainerResponse](t, rec)
	assert.Equal(t, "Container updated successfully", got.Message)
	assert.Equal(t, "MSKU1234565", got.ContainerNumber)
	assert.Equal(t, "22G1", got.ISOCode)
	assert.Equal(t, "reefer", got.OtherInfo)
	assert.True(t, got.UpdatedAt.After(before.UpdatedAt))
}

func TestUpdateErrors(t *testing.T) {
	s := setupTestServer(t)
	first := createContainer(t, s, `{"container_number":"AAAU1111111"}`)
	second := createContainer(t, s, `{"container_number":"BBBU2222222"}`)

	rec := doRequest(t, s, http.MethodPut, "/api/containers/"+itoa(second), `{"container_number":"AAAU1111111"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, s, http.MethodPut, "/api/containers/"+itoa(first), `{"container_number":"AAAU1111111"}`)
	assert.Equal(t, http.StatusOK, rec.Code, "keeping its own number is not a conflict")

	rec = doRequest(t, s, http.MethodPut, "/api/containers/999", `{"iso_code":"45G1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodPut, "/api/containers/"+itoa(first), `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPut, "/api/containers/"+itoa(first), `{"container_number":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteRemovesRecord(t *testing.T) {
	s := setupTestServer(t)
	id := createContainer(t, s, `{"container_number":"MSKU1234565"}`)

	rec := doRequest(t, s, http.MethodDelete, "/api/containers/"+itoa(id), "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[DeleteContainerResponse](t, rec)
	assert.Equal(t, "Container deleted successfully", got.Message)
	assert.Equal(t, id, got.DeletedContainer.ID)
	assert.Equal(t, "MSKU1234565", got.DeletedContainer.ContainerNumber)

	assert.Equal(t, http.StatusNotFound, doRequest(t, s, http.MethodGet, "/api/containers/"+itoa(id), "").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(t, s, http.MethodDelete, "/api/containers/"+itoa(id), "").Code)

	list := decode[[]models.Container](t, doRequest(t, s, http.MethodGet, "/api/containers", ""))
	assert.Empty(t, list)
}

func TestSearch(t *testing.T) {
	s := setupTestServer(t)
	createContainer(t, s, `{"container_number":"ABCU1234567","iso_code":"45G1"}`)
	createContainer(t, s, `{"container_number":"zzabczz0001","iso_code":"22G1"}`)
	createContainer(t, s, `{"container_number":"MSKU7654321","iso_code":"45G1"}`)

	rec := doRequest(t, s, http.MethodGet, "/api/containers/search?number=abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[SearchContainersResponse](t, rec)
	assert.Equal(t, 2, got.Count)
	require.Len(t, got.Containers, 2)
	for _, c := range got.Containers {
		assert.Contains(t, strings.ToLower(c.ContainerNumber), "abc")
	}

	rec = doRequest(t, s, http.MethodGet, "/api/containers/search?iso_code=45g", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[SearchContainersResponse](t, rec).Count)

	rec = doRequest(t, s, http.MethodGet, "/api/containers/search?number=nothing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[SearchContainersResponse](t, rec)
	assert.Equal(t, 0, empty.Count)
	assert.NotNil(t, empty.Containers)

	rec = doRequest(t, s, http.MethodGet, "/api/containers/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := setupTestServer(t)
	createContainer(t, s, `{"container_number":"MSKU1234565"}`)

	assert.Equal(t, http.StatusOK, doRequest(t, s, http.MethodGet, "/health", "").Code)

	rec := doRequest(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `container_tracker_http_requests_total{method="POST",route="/api/containers",status="201"} 1`)
}

// failingStore finds every record but cannot write.
type failingStore struct {
	ContainerStore
}

var errStoreDown = errors.New("store unavailable")

func (failingStore) Get(_ context.Context, id uint) (*models.Container, error) {
	return &models.Container{ID: id, ContainerNumber: "MSKU1234565"}, nil
}

func (failingStore) Update(context.Context, uint, models.ContainerPatch) (*models.Container, error) {
	return nil, errStoreDown
}

func (failingStore) Delete(context.Context, uint) (*models.Container, error) {
	return nil, errStoreDown
}

func TestPersistenceFailuresReturnGenericError(t *testing.T) {
	s := NewServer(failingStore{}, zap.NewNop(), nil)

	rec := doRequest(t, s, http.MethodPut, "/api/containers/1", `{"iso_code":"45G1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to update container", decode[map[string]string](t, rec)["error"])

	rec = doRequest(t, s, http.MethodDelete, "/api/containers/1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to delete container", decode[map[string]string](t, rec)["error"])
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
