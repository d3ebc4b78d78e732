package sentiment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
  "name": "Fear and Greed Index",
  "data": [
    {"value": "20", "value_classification": "Extreme Fear", "timestamp": "1772236800"},
    {"value": "31", "value_classification": "Fear", "timestamp": "1772150400"},
    {"value": "45", "value_classification": "Fear", "timestamp": "1772064000"}
  ]
}`

func TestFetchParsesIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("limit"))
		w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	idx, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, idx.Value)
	assert.Equal(t, "Extreme Fear", idx.Classification)
	assert.InDelta(t, 32.0, idx.Average, 1e-9)
	assert.Equal(t, "deteriorating", idx.Trend, "20 sits below the trailing average")
}

func TestFetchRejectsEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Fetch(context.Background())
	assert.Error(t, err)
}

func TestFetchRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Fetch(context.Background())
	assert.Error(t, err)
}
