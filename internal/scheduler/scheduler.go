// Package scheduler implements the Scheduler Core of spec.md §4.6: the
// event loop that translates resource offers into launches, bin-packing
// pending Jobs against each offer's free capacity and coordinating the
// registry/disks-service side effects transactionally with the launch
// decision.
//
// The offer-handling algorithm and the RWMutex-guarded shared state are
// grounded on bluepeppers-etcd-mesos/scheduler/scheduler.go's
// EtcdScheduler; the greedy first-fit-in-queue-order packing loop is
// grounded on original_source/app/mesos_framework/scheduler.py's
// handle_offers closure.
package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	log "github.com/golang/glog"

	"github.com/bigdatacesga/scheduler/internal/disks"
	"github.com/bigdatacesga/scheduler/internal/matcher"
	"github.com/bigdatacesga/scheduler/internal/model"
	"github.com/bigdatacesga/scheduler/internal/progress"
	"github.com/bigdatacesga/scheduler/internal/queue"
	"github.com/bigdatacesga/scheduler/internal/registry"
)

// Driver is the subset of the Framework Driver that the Scheduler Core
// needs to carry out placement decisions. internal/framework implements
// this against the real mesos-go SchedulerDriver.
type Driver interface {
	LaunchTasks(offerID string, tasks []*model.Task) error
	DeclineOffer(offerID string) error
	KillTask(taskID string) error
}

// Registry is the subset of the Registry Client the core depends on.
type Registry interface {
	GetCluster(dn string) (*model.Cluster, error)
	PutCluster(cluster *model.Cluster) error
	GetNode(dn string) (*model.Node, error)
	PutNode(node *model.Node) error
}

var _ Registry = (*registry.Client)(nil)

// DisksService is the subset of the Disks Client the core depends on.
type DisksService interface {
	SetDiskAsUsed(ctx context.Context, host, nodeDN, disk string) error
}

var _ DisksService = (*disks.Client)(nil)

// Core is the Scheduler Core: queue + progress + registry + disks,
// reacting to offer/status callbacks from a Driver.
type Core struct {
	queue    *queue.Queue
	registry Registry
	disks    DisksService
	driver   Driver

	mu       sync.RWMutex
	clusters map[string]*model.Cluster // dn -> cluster, cached for progress/kill

	diskTimeout time.Duration
}

// New constructs a Scheduler Core without a driver; attach one later via
// SetDriver, since the Framework Driver typically
// depends on the Core's callbacks existing before the mesos-go driver
// connection is established.
func New(reg Registry, diskClient DisksService) *Core {
	return &Core{
		queue:       queue.New(),
		registry:    reg,
		disks:       diskClient,
		clusters:    map[string]*model.Cluster{},
		diskTimeout: 5 * time.Second,
	}
}

// SetDriver attaches the Framework Driver the core launches/declines/kills
// through. Must be called before OnOffers/Kill are invoked.
func (c *Core) SetDriver(d Driver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.driver = d
}

// Enqueue accepts a cluster submission: initializes its lifecycle fields
// and appends each of its nodes to the Job Queue (spec.md §4.6 "enqueue").
func (c *Core) Enqueue(cluster *model.Cluster) error {
	progress.InitializeClusterStatus(cluster)
	if err := c.registry.PutCluster(cluster); err != nil {
		return err
	}

	c.mu.Lock()
	c.clusters[cluster.DN] = cluster
	c.mu.Unlock()

	c.queue.Append(cluster.Nodes)
	log.Infof("scheduler: enqueued cluster %s with %d nodes", cluster.DN, len(cluster.Nodes))
	return nil
}

// Kill issues a KillTask for every node in cluster that has already been
// placed (carries a slave/offer id). Queued-but-not-yet-launched nodes
// are a documented best-effort no-op: they remain in the queue (spec.md
// §4.6 Open Question, resolved in DESIGN.md).
func (c *Core) Kill(cluster *model.Cluster) error {
	c.mu.RLock()
	driver := c.driver
	c.mu.RUnlock()

	for _, node := range cluster.Nodes {
		if node.SlaveID == "" && node.OfferID == "" {
			continue // never placed; best-effort no-op per spec.md §4.6
		}
		taskID := registry.IDFromDN(node.DN)
		if err := driver.KillTask(taskID); err != nil {
			log.Errorf("scheduler: kill %s failed: %v", taskID, err)
		}
	}
	return nil
}

// Pending returns a snapshot of the jobs currently queued.
func (c *Core) Pending() []*model.Job {
	return c.queue.Pending()
}

// ClusterByID resolves a cluster id (spec.md §6 "id_from(dn)") back to the
// cluster submitted under it, searching the clusters enqueued this
// process lifetime. Used by the Admission API's DELETE /clusters/<id>.
func (c *Core) ClusterByID(id string) (*model.Cluster, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for dn, cluster := range c.clusters {
		if registry.IDFromDN(dn) == id {
			return cluster, true
		}
	}
	return nil, false
}

// OnOffers is the Driver callback for a batch of resource offers. Each
// offer is handled independently and concurrently; the state shared
// across offers is the Job Queue, whose Claim/Release/Remove are
// mutex-guarded (spec.md §5), and the cluster progress records, whose
// updates handleOffer serialises under c.mu.
func (c *Core) OnOffers(offers []*model.Offer) {
	var wg sync.WaitGroup
	for _, offer := range offers {
		offer := offer
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.handleOffer(offer)
		}()
	}
	wg.Wait()
}

// handleOffer runs the offer-handling algorithm of spec.md §4.6 steps
// 1-4 against a single offer.
func (c *Core) handleOffer(offer *model.Offer) {
	available := matcher.ResourcesFrom(*offer)
	snapshot := c.queue.Pending()

	var placements []*model.Task

	for _, job := range snapshot {
		if !matcher.OfferHasEnoughResources(available, job) {
			continue
		}

		// Claim the job before doing any I/O: two offers handled
		// concurrently can both see job in their snapshot, but only one
		// Claim succeeds. The loser skips it rather than placing it a
		// second time (spec.md §5 "each job appears in at most one
		// launchTasks call"). Unlike removing the job outright, a claim
		// can be released if placement fails, so the job is never lost.
		if !c.queue.Claim(job) {
			continue
		}

		allocated := matcher.SelectDisks(available.Disks, job.Disks)

		if err := c.commitDisks(offer.Host, job, allocated); err != nil {
			log.Errorf("scheduler: disks service failed placing %s on offer %s: %v", job.Name, offer.ID, err)
			// §4.6/§9 failure semantics (option b): launch whatever was
			// already committed in this pass, skip the failing job, and
			// keep trying the remaining queued jobs against this offer's
			// still-available resources rather than abandoning the pass.
			// Release the claim so the job remains queued for a later
			// offer to retry (spec.md §7 ResourceError policy), rather
			// than being lost.
			c.queue.Release(job)
			continue
		}

		c.commitNode(offer, job, allocated)

		job.SlaveID = offer.SlaveID
		job.Hostname = offer.Host
		job.OfferID = offer.ID

		available.CPUs -= job.CPUs
		available.Mem -= job.Mem
		available.Disks = matcher.RemoveDisks(available.Disks, allocated)

		// Offers for nodes of the same cluster run concurrently; the
		// read-modify-write of its progress record is serialised here.
		c.mu.Lock()
		err := progress.UpdateClusterProgress(c.registry, clusterDN(job.Node.DN))
		c.mu.Unlock()
		if err != nil {
			log.Errorf("scheduler: failed to update cluster progress for %s: %v", job.Node.DN, err)
		}

		// Only now, after the full placement has succeeded, does the job
		// leave the queue (spec.md §4.6 step i).
		c.queue.Remove(job)

		placements = append(placements, taskFromJob(job, allocated))
	}

	c.mu.RLock()
	driver := c.driver
	c.mu.RUnlock()

	if len(placements) > 0 {
		if err := driver.LaunchTasks(offer.ID, placements); err != nil {
			log.Errorf("scheduler: launchTasks failed for offer %s: %v", offer.ID, err)
		}
		return
	}
	if err := driver.DeclineOffer(offer.ID); err != nil {
		log.Errorf("scheduler: declineOffer failed for offer %s: %v", offer.ID, err)
	}
}

// commitDisks allocates the disks picked for job through the disks
// service, bailing out on the first failure (spec.md §4.6 step d).
func (c *Core) commitDisks(host string, job *model.Job, allocated []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.diskTimeout)
	defer cancel()

	for _, d := range allocated {
		if err := c.disks.SetDiskAsUsed(ctx, host, job.Node.DN, d); err != nil {
			return err
		}
	}
	return nil
}

// commitNode mutates the node's registry record with its placement
// results: slave id, hostname, offer id and disk paths (spec.md §4.6 step
// e, §3 Disk path formula).
func (c *Core) commitNode(offer *model.Offer, job *model.Job, allocated []string) {
	node := job.Node
	node.SlaveID = offer.SlaveID
	node.Hostname = offer.Host
	node.OfferID = offer.ID
	node.Status = model.NodeLaunching

	nodeID := node.ID()
	node.NodeDisks = make([]*model.Disk, 0, len(allocated))
	for _, diskName := range allocated {
		path := model.DiskPath(diskName, nodeID)
		node.NodeDisks = append(node.NodeDisks, &model.Disk{
			Name:        diskName,
			MesosName:   diskName,
			Origin:      path,
			Destination: path,
		})
	}

	if err := c.registry.PutNode(node); err != nil {
		log.Errorf("scheduler: failed to persist node %s: %v", node.DN, err)
	}
}

// taskFromJob builds the Task descriptor launched for a placed job
// (spec.md §4.6 task_from).
func taskFromJob(job *model.Job, allocated []string) *model.Task {
	node := job.Node
	data, _ := json.Marshal(struct {
		NodeDN string `json:"node_dn"`
	}{NodeDN: node.DN})
	return &model.Task{
		TaskID:  registry.IDFromDN(node.DN),
		SlaveID: job.SlaveID,
		Name:    job.Name,
		Data:    data,
		CPUs:    job.CPUs,
		Mem:     job.Mem,
		Disks:   allocated,
	}
}

// OnStatus is the Driver callback for a task status update. Purely
// observational per spec.md §4.6: no queue or cluster state mutation.
func (c *Core) OnStatus(taskID, state string) {
	log.Infof("scheduler: status update for task %s: %s", taskID, state)
}

// clusterDN derives a cluster's dn from one of its node's dn by dropping
// the trailing "/nodes/<name>" segment convention used by the registry
// (spec.md §6 "instances/<product>/<version>/<id>/nodes/<name>").
func clusterDN(nodeDN string) string {
	const marker = "/nodes/"
	for i := len(nodeDN) - len(marker); i >= 0; i-- {
		if nodeDN[i:i+len(marker)] == marker {
			return nodeDN[:i]
		}
	}
	return nodeDN
}
