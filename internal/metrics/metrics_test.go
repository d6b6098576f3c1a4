package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Records(t *testing.T) {
	p := NewPrometheus()

	p.WriteOut(1)
	p.WriteOut(1)
	p.ExchangeBytes(128)
	p.ObservePhase("octahedron", 3*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.writeOuts.WithLabelValues("1")))
	assert.Equal(t, 128.0, testutil.ToFloat64(p.bytes))
	assert.Equal(t, 1, testutil.CollectAndCount(p.phases))
}

func TestPrometheus_Handler(t *testing.T) {
	p := NewPrometheus()
	p.WriteOut(0)
	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `sweptgrid_write_outs_total{rank="0"} 1`)
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	r.ObservePhase("up", time.Second)
	r.WriteOut(0)
	r.ExchangeBytes(1)
}
