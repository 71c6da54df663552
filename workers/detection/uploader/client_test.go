package uploader

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testURL = "http://tracker.test/api/containers"

func setupMockedClient(t *testing.T) *Client {
	t.Helper()
	c := NewClient(testURL, 2*time.Second, zap.NewNop())
	httpmock.ActivateNonDefault(c.rest.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestCreateSuccess(t *testing.T) {
	c := setupMockedClient(t)

	var got Submission
	var requestID string
	httpmock.RegisterResponder(http.MethodPost, testURL, func(req *http.Request) (*http.Response, error) {
		requestID = req.Header.Get("X-Request-ID")
		if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
			return nil, err
		}
		return httpmock.NewJsonResponse(http.StatusCreated, map[string]any{"message": "Container saved", "id": 17})
	})

	outcome := c.Create(context.Background(), Submission{ContainerNumber: "MSKU1234565", ISOCode: "45G1"})

	assert.Equal(t, StatusCreated, outcome.Status)
	assert.Equal(t, http.StatusCreated, outcome.StatusCode)
	assert.Equal(t, uint(17), outcome.ID)
	assert.NoError(t, outcome.Err)
	assert.Equal(t, Submission{ContainerNumber: "MSKU1234565", ISOCode: "45G1"}, got)
	assert.NotEmpty(t, requestID)
}

func TestCreateDuplicate(t *testing.T) {
	c := setupMockedClient(t)
	httpmock.RegisterResponder(http.MethodPost, testURL,
		httpmock.NewStringResponder(http.StatusConflict, `{"error":"container with this number already exists"}`))

	outcome := c.Create(context.Background(), Submission{ContainerNumber: "MSKU1234565"})

	assert.Equal(t, StatusDuplicate, outcome.Status)
	assert.Equal(t, http.StatusConflict, outcome.StatusCode)
	assert.NoError(t, outcome.Err)
}

func TestCreateFailures(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		c := setupMockedClient(t)
		httpmock.RegisterResponder(http.MethodPost, testURL,
			httpmock.NewJsonResponderOrPanic(http.StatusInternalServerError, map[string]string{"error": "Failed to save container"}))

		outcome := c.Create(context.Background(), Submission{ContainerNumber: "X"})
		assert.Equal(t, StatusFailed, outcome.Status)
		assert.Equal(t, http.StatusInternalServerError, outcome.StatusCode)
		assert.ErrorContains(t, outcome.Err, "Failed to save container")
	})

	t.Run("transport error", func(t *testing.T) {
		c := setupMockedClient(t)
		httpmock.RegisterResponder(http.MethodPost, testURL, httpmock.NewErrorResponder(assert.AnError))

		outcome := c.Create(context.Background(), Submission{ContainerNumber: "X"})
		assert.Equal(t, StatusFailed, outcome.Status)
		assert.Zero(t, outcome.StatusCode)
		require.Error(t, outcome.Err)
	})
}
