package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigdatacesga/scheduler/internal/model"
)

type fakeScheduler struct {
	enqueued []*model.Cluster
	killed   []*model.Cluster
	pending  []*model.Job
	byID     map[string]*model.Cluster
	failEnq  bool
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{byID: map[string]*model.Cluster{}}
}

func (f *fakeScheduler) Enqueue(c *model.Cluster) error {
	if f.failEnq {
		return assertError{"enqueue failed"}
	}
	f.enqueued = append(f.enqueued, c)
	return nil
}

func (f *fakeScheduler) Kill(c *model.Cluster) error {
	f.killed = append(f.killed, c)
	return nil
}

func (f *fakeScheduler) Pending() []*model.Job { return f.pending }

func (f *fakeScheduler) ClusterByID(id string) (*model.Cluster, bool) {
	c, ok := f.byID[id]
	return c, ok
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }

type fakeRegistry struct {
	clusters map[string]*model.Cluster
}

func (f *fakeRegistry) GetCluster(dn string) (*model.Cluster, error) {
	c, ok := f.clusters[dn]
	if !ok {
		return nil, assertError{"no such cluster"}
	}
	return c, nil
}

func newTestAPI() (*API, *fakeScheduler, *fakeRegistry) {
	sched := newFakeScheduler()
	reg := &fakeRegistry{clusters: map[string]*model.Cluster{}}
	return New(sched, reg), sched, reg
}

func TestSubmitCluster(t *testing.T) {
	a, sched, reg := newTestAPI()
	cluster := &model.Cluster{DN: "instances/p/1/c1"}
	reg.clusters[cluster.DN] = cluster

	body, _ := json.Marshal(map[string]string{"clusterdn": cluster.DN})
	req := httptest.NewRequest(http.MethodPost, "/scheduler/v1/clusters", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	a.Router("/scheduler/v1").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sched.enqueued, 1)
	assert.Equal(t, cluster.DN, sched.enqueued[0].DN)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Service instance queued", resp.Message)
	assert.Equal(t, "/clusters/c1", resp.URL)
}

func TestSubmitClusterMissingClusterDNIsValidationError(t *testing.T) {
	a, sched, _ := newTestAPI()

	req := httptest.NewRequest(http.MethodPost, "/scheduler/v1/clusters", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	a.Router("/scheduler/v1").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, sched.enqueued)
}

func TestSubmitClusterUnknownDNIs400(t *testing.T) {
	a, _, _ := newTestAPI()

	body, _ := json.Marshal(map[string]string{"clusterdn": "instances/p/1/missing"})
	req := httptest.NewRequest(http.MethodPost, "/scheduler/v1/clusters", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	a.Router("/scheduler/v1").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKillClusterByID(t *testing.T) {
	a, sched, _ := newTestAPI()
	cluster := &model.Cluster{DN: "instances/p/1/c2"}
	sched.byID["c2"] = cluster

	req := httptest.NewRequest(http.MethodDelete, "/scheduler/v1/clusters/c2", nil)
	rec := httptest.NewRecorder()

	a.Router("/scheduler/v1").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, sched.killed, 1)
	assert.Equal(t, cluster.DN, sched.killed[0].DN)
}

func TestKillClusterUnknownIDIs400(t *testing.T) {
	a, sched, _ := newTestAPI()

	req := httptest.NewRequest(http.MethodDelete, "/scheduler/v1/clusters/unknown", nil)
	rec := httptest.NewRecorder()

	a.Router("/scheduler/v1").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, sched.killed)
}

func TestListClusters(t *testing.T) {
	a, sched, _ := newTestAPI()
	sched.pending = []*model.Job{{Name: "n1"}, {Name: "n2"}}

	req := httptest.NewRequest(http.MethodGet, "/scheduler/v1/clusters", nil)
	rec := httptest.NewRecorder()

	a.Router("/scheduler/v1").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.QueuedTasks, 2)
}

func TestRefuseRejectsNewSubmissions(t *testing.T) {
	a, sched, reg := newTestAPI()
	cluster := &model.Cluster{DN: "instances/p/1/c9"}
	reg.clusters[cluster.DN] = cluster
	a.Refuse()

	body, _ := json.Marshal(map[string]string{"clusterdn": cluster.DN})
	req := httptest.NewRequest(http.MethodPost, "/scheduler/v1/clusters", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	a.Router("/scheduler/v1").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, sched.enqueued)
}

func TestUnknownRouteIs404Envelope(t *testing.T) {
	a, _, _ := newTestAPI()

	req := httptest.NewRequest(http.MethodGet, "/scheduler/v1/nope", nil)
	rec := httptest.NewRecorder()

	a.Router("/scheduler/v1").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "status")
	assert.Contains(t, body, "error")
}
