// Package progress implements the Progress Tracker of spec.md §4.5:
// updating a cluster's step/progress/status fields as each node is
// launched.
package progress

import (
	"github.com/bigdatacesga/scheduler/internal/model"
	"github.com/bigdatacesga/scheduler/internal/registry"
)

// ClusterStore is the subset of the Registry Client this package needs.
type ClusterStore interface {
	GetCluster(dn string) (*model.Cluster, error)
	PutCluster(cluster *model.Cluster) error
}

var _ ClusterStore = (*registry.Client)(nil)

// InitializeClusterStatus sets a freshly-submitted cluster to its initial
// lifecycle state.
func InitializeClusterStatus(cluster *model.Cluster) {
	cluster.Status = model.StatusQueued
	cluster.Step = 0
	cluster.Progress = 0
}

// UpdateClusterProgress advances the cluster stored at clusterDN by one step:
// step += 1, progress = floor(100*step/len(nodes)), status = executing
// iff step == len(nodes), else launching.
//
// This fixes the REDESIGN FLAG in spec.md §9 ("progress formula
// mismatch"): the original bigdatacesga/scheduler swapped the launching/
// executing labels.
func UpdateClusterProgress(store ClusterStore, clusterDN string) error {
	cluster, err := store.GetCluster(clusterDN)
	if err != nil {
		return err
	}

	cluster.Step++
	total := len(cluster.Nodes)
	if total == 0 {
		cluster.Progress = 100
	} else {
		cluster.Progress = (100 * cluster.Step) / total
	}

	if cluster.Step >= total {
		cluster.Status = model.StatusExecuting
	} else {
		cluster.Status = model.StatusLaunching
	}

	return store.PutCluster(cluster)
}
