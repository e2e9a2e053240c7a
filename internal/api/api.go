// Package api implements the Admission API of spec.md §6: the HTTP
// surface that accepts cluster submissions and kill/list requests and
// delegates to the Scheduler Core.
//
// Grounded on original_source/app/endpoints.py's submit_cluster/
// kill_cluster/list_clusters/is_valid (route shapes, validation, response
// bodies) and original_source/app/__init__.py's blueprint/url-prefix
// pattern; the router itself is bluepeppers-etcd-mesos/scheduler/
// scheduler.go's AdminHTTP mux-registration style, generalized from
// http.ServeMux to gorilla/mux for path-parameter routes.
package api

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"

	log "github.com/golang/glog"

	"github.com/bigdatacesga/scheduler/internal/apierr"
	"github.com/bigdatacesga/scheduler/internal/model"
	"github.com/bigdatacesga/scheduler/internal/registry"
	"github.com/bigdatacesga/scheduler/internal/scheduler"
)

// Scheduler is the subset of the Scheduler Core the Admission API
// depends on.
type Scheduler interface {
	Enqueue(cluster *model.Cluster) error
	Kill(cluster *model.Cluster) error
	Pending() []*model.Job
	ClusterByID(id string) (*model.Cluster, bool)
}

var _ Scheduler = (*scheduler.Core)(nil)

// Registry resolves a submitted clusterdn into a Cluster record, the way
// original_source/app/endpoints.py's registry.Cluster(clusterdn) does.
type Registry interface {
	GetCluster(dn string) (*model.Cluster, error)
}

var _ Registry = (*registry.Client)(nil)

// API holds the HTTP handlers and their dependencies.
type API struct {
	scheduler Scheduler
	registry  Registry
	refusing  atomic.Bool
}

// New builds the Admission API; Router then serves it under a prefix
// (e.g. "/scheduler/v1").
func New(scheduler Scheduler, registry Registry) *API {
	return &API{scheduler: scheduler, registry: registry}
}

// Refuse puts the API into a refusing-requests state: every subsequent
// request to an Admission API route gets a 500 DriverError instead of
// being served (unknown routes and methods still get 404/405). Spec.md §7.4:
// once the Framework Driver has hit an unrecoverable mesos error, the
// admission API must stop accepting new submissions rather than queue
// work nothing will ever place.
func (a *API) Refuse() {
	a.refusing.Store(true)
}

// Router returns a *mux.Router serving the Admission API under prefix.
func (a *API) Router(prefix string) *mux.Router {
	r := mux.NewRouter()
	sub := r.PathPrefix(prefix).Subrouter()
	sub.Use(a.refuseIfShuttingDown)
	sub.HandleFunc("/clusters", a.submitCluster).Methods(http.MethodPost)
	sub.HandleFunc("/clusters", a.listClusters).Methods(http.MethodGet)
	sub.HandleFunc("/clusters/{id}", a.killCluster).Methods(http.MethodDelete)
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	return r
}

// refuseIfShuttingDown rejects every request to a matched route once
// Refuse has been called.
func (a *API) refuseIfShuttingDown(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.refusing.Load() {
			apierr.WriteJSON(w, apierr.Driver("scheduler is shutting down", nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type submitRequest struct {
	ClusterDN string `json:"clusterdn"`
}

type submitResponse struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// submitCluster handles POST /clusters (spec.md §6).
func (a *API) submitCluster(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClusterDN == "" {
		log.Warning("api: POST /clusters: invalid request")
		apierr.WriteJSON(w, apierr.Validation("unable to get the clusterdn"))
		return
	}

	cluster, err := a.registry.GetCluster(req.ClusterDN)
	if err != nil {
		log.Errorf("api: POST /clusters: failed to load %s: %v", req.ClusterDN, err)
		apierr.WriteJSON(w, apierr.NotFound("unknown clusterdn: "+err.Error()))
		return
	}

	if err := a.scheduler.Enqueue(cluster); err != nil {
		log.Errorf("api: POST /clusters: enqueue %s failed: %v", req.ClusterDN, err)
		apierr.WriteJSON(w, apierr.Internal("failed to queue cluster", err))
		return
	}

	log.Infof("api: POST /clusters: %s", req.ClusterDN)
	writeJSON(w, http.StatusOK, submitResponse{
		Message: "Service instance queued",
		URL:     "/clusters/" + registry.IDFromDN(req.ClusterDN),
	})
}

// killCluster handles DELETE /clusters/{id}.
func (a *API) killCluster(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	cluster, ok := a.scheduler.ClusterByID(id)
	if !ok {
		apierr.WriteJSON(w, apierr.Validation("unknown cluster id"))
		return
	}

	if err := a.scheduler.Kill(cluster); err != nil {
		log.Errorf("api: DELETE /clusters/%s failed: %v", id, err)
		apierr.WriteJSON(w, apierr.Internal("failed to kill cluster", err))
		return
	}

	log.Infof("api: DELETE /clusters/%s", id)
	w.WriteHeader(http.StatusNoContent)
}

type listResponse struct {
	QueuedTasks []*model.Job `json:"queued_tasks"`
}

// listClusters handles GET /clusters.
func (a *API) listClusters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listResponse{QueuedTasks: a.scheduler.Pending()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("api: failed to encode response: %v", err)
	}
}

// notFound and methodNotAllowed render the 404/405 cases of spec.md §6,
// which sit outside the Validation/NotFound taxonomy's usual 400 mapping
// (apierr.NotFound covers "unknown clusterdn", not "unknown route").
func notFound(w http.ResponseWriter, r *http.Request) {
	apierr.WriteJSON(w, &apierr.Error{Kind: apierr.KindNotFound, Status: http.StatusNotFound, Message: "unknown route"})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apierr.WriteJSON(w, &apierr.Error{Kind: apierr.KindValidation, Status: http.StatusMethodNotAllowed, Message: "method not supported"})
}
