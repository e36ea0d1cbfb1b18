package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRecordersAreSafe(t *testing.T) {
	var s *Storage
	s.RecordCacheHit()
	s.RecordCacheMiss()
	s.RecordPersist(10, time.Millisecond)
	s.RecordRemove(time.Millisecond)
	s.RecordFailure("get")
	s.SetStored(3)

	var i *Ingest
	i.RecordRun(time.Second, true)
	i.RecordMessage()
	i.RecordAttachment("stored")
}

func TestStorageMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewStorage(reg)

	s.RecordCacheHit()
	s.RecordCacheHit()
	s.RecordCacheMiss()
	s.RecordPersist(4, time.Millisecond)
	s.SetStored(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(s.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.cacheMisses))
	assert.Equal(t, 4.0, testutil.ToFloat64(s.persistedBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.stored))
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewIngest(reg).RecordAttachment("stored")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `attachment_store_ingest_attachments_total{result="stored"} 1`))
}
