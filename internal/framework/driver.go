// Package framework implements the Framework Driver of spec.md §4.6/§9:
// the long-lived mesos-go Scheduler connection that turns mesos callbacks
// into internal/scheduler.Core calls, and turns the core's placement
// decisions into mesos-go driver RPCs.
//
// Grounded on bluepeppers-etcd-mesos/scheduler/scheduler.go's
// EtcdScheduler and its Registered/Reregistered/Disconnected/
// ResourceOffers/StatusUpdate/OfferRescinded/FrameworkMessage/SlaveLost/
// ExecutorLost/Error methods. FrameworkID persistence goes through
// internal/registry instead of the teacher's zookeeper client (see
// SPEC_FULL.md's Domain Stack table for why zk is dropped).
package framework

import (
	"fmt"
	"sync"

	"github.com/gogo/protobuf/proto"
	log "github.com/golang/glog"
	mesos "github.com/mesos/mesos-go/mesosproto"
	util "github.com/mesos/mesos-go/mesosutil"
	mesossched "github.com/mesos/mesos-go/scheduler"

	"github.com/bigdatacesga/scheduler/internal/model"
	internalscheduler "github.com/bigdatacesga/scheduler/internal/scheduler"
)

// frameworkIDKey is the registry key the framework id is persisted under,
// replacing the teacher's zk chroot path (rpc.PersistFrameworkID).
const frameworkIDKey = "scheduler/framework_id"

// IDStore persists the framework id across process restarts.
// internal/registry.Client satisfies this via PutString/GetString.
type IDStore interface {
	PutString(key, value string) error
	GetString(key string) (value string, ok bool, err error)
}

// Driver is the mesos-go Scheduler implementation. It delegates every
// callback to an internal/scheduler.Core, and is itself the Core's
// internalscheduler.Driver: LaunchTasks/DeclineOffer/KillTask translate
// straight into the mesos-go SchedulerDriver RPCs of the same name.
type Driver struct {
	core            *internalscheduler.Core
	ids             IDStore
	executorCommand string
	fatal           chan string

	mu sync.RWMutex
	sd mesossched.SchedulerDriver
}

// New builds a Driver wired to core, and registers itself as the core's
// launch/decline/kill backend. executorCommand is the EXECUTOR_COMMAND of
// spec.md §6, launched on the slave for every task this driver ships.
func New(core *internalscheduler.Core, ids IDStore, executorCommand string) *Driver {
	d := &Driver{core: core, ids: ids, executorCommand: executorCommand, fatal: make(chan string, 1)}
	core.SetDriver(d)
	return d
}

// Fatal reports scheduler-driver-level errors (Error callback below) the
// process entry point must react to: spec.md §7.4 requires a DriverError
// to initiate graceful shutdown, not just a log line.
func (d *Driver) Fatal() <-chan string {
	return d.fatal
}

// FrameworkID returns the last persisted framework id, if any, so the
// process entry point can pass it to mesos-go's SchedulerDriver config on
// restart (re-registration instead of a fresh framework id).
func (d *Driver) FrameworkID() (string, bool, error) {
	return d.ids.GetString(frameworkIDKey)
}

// Registered is the mesos-go callback fired once the framework is
// accepted by the master.
func (d *Driver) Registered(sd mesossched.SchedulerDriver, frameworkID *mesos.FrameworkID, masterInfo *mesos.MasterInfo) {
	log.Infof("framework: registered with master %s, framework id %s", masterInfo.GetHostname(), frameworkID.GetValue())
	d.mu.Lock()
	d.sd = sd
	d.mu.Unlock()

	if err := d.ids.PutString(frameworkIDKey, frameworkID.GetValue()); err != nil {
		log.Errorf("framework: failed to persist framework id: %v", err)
	}
}

// Reregistered fires after a master failover; the framework id is
// unchanged so nothing needs to be persisted again.
func (d *Driver) Reregistered(sd mesossched.SchedulerDriver, masterInfo *mesos.MasterInfo) {
	log.Infof("framework: reregistered with master %s", masterInfo.GetHostname())
	d.mu.Lock()
	d.sd = sd
	d.mu.Unlock()
}

// Disconnected fires when the mesos master connection drops. Placement
// simply resumes once ResourceOffers starts flowing again; there is no
// immutable/mutable state machine to manage here.
func (d *Driver) Disconnected(mesossched.SchedulerDriver) {
	log.Warning("framework: disconnected from master")
}

// ResourceOffers is the mesos-go callback for a batch of offers. Each
// offer is translated to the core's opaque view and handed to
// scheduler.Core.OnOffers in one call, so offers arriving in the same
// callback are matched against the same queue snapshot policy (spec.md
// §5).
func (d *Driver) ResourceOffers(sd mesossched.SchedulerDriver, offers []*mesos.Offer) {
	converted := make([]*model.Offer, 0, len(offers))
	for _, o := range offers {
		converted = append(converted, offerFromMesos(o))
	}
	d.core.OnOffers(converted)
}

// StatusUpdate is the mesos-go callback for a task status change.
func (d *Driver) StatusUpdate(sd mesossched.SchedulerDriver, status *mesos.TaskStatus) {
	d.core.OnStatus(status.GetTaskId().GetValue(), status.GetState().String())
}

// OfferRescinded fires when a previously-offered resource is withdrawn.
// Since the core re-derives its available resources fresh from each
// ResourceOffers batch rather than caching offers, there is nothing to
// invalidate here beyond a log line.
func (d *Driver) OfferRescinded(mesossched.SchedulerDriver, *mesos.OfferID) {
	log.Info("framework: offer rescinded")
}

// FrameworkMessage is unused: tasks here don't send executor-to-framework
// messages.
func (d *Driver) FrameworkMessage(mesossched.SchedulerDriver, *mesos.ExecutorID, *mesos.SlaveID, string) {
}

// SlaveLost fires when a slave is known gone. StatusUpdate for its tasks
// follows separately, so no extra bookkeeping is needed here.
func (d *Driver) SlaveLost(mesossched.SchedulerDriver, *mesos.SlaveID) {
	log.Warning("framework: slave lost")
}

// ExecutorLost mirrors SlaveLost for a single executor.
func (d *Driver) ExecutorLost(mesossched.SchedulerDriver, *mesos.ExecutorID, *mesos.SlaveID, int) {
	log.Warning("framework: executor lost")
}

// Error is the mesos-go callback for scheduler-driver-level errors (e.g.
// framework removed by the master). Per spec.md §7.4 this is the one
// error kind that triggers process shutdown, so it is forwarded on Fatal
// for the entry point to act on, in addition to being logged.
func (d *Driver) Error(sd mesossched.SchedulerDriver, msg string) {
	log.Errorf("framework: mesos error: %s", msg)
	select {
	case d.fatal <- msg:
	default: // already have one pending; the entry point is shutting down
	}
}

// LaunchTasks implements internal/scheduler.Driver by issuing a mesos-go
// LaunchTasks RPC for the given offer and task set.
func (d *Driver) LaunchTasks(offerID string, tasks []*model.Task) error {
	sd, err := d.connected()
	if err != nil {
		return err
	}
	mesosTasks := make([]*mesos.TaskInfo, 0, len(tasks))
	for _, t := range tasks {
		mesosTasks = append(mesosTasks, d.taskInfoFromTask(t))
	}
	_, err = sd.LaunchTasks(
		[]*mesos.OfferID{{Value: proto.String(offerID)}},
		mesosTasks,
		&mesos.Filters{RefuseSeconds: proto.Float64(1)},
	)
	return err
}

// DeclineOffer implements internal/scheduler.Driver.
func (d *Driver) DeclineOffer(offerID string) error {
	sd, err := d.connected()
	if err != nil {
		return err
	}
	_, err = sd.DeclineOffer(
		&mesos.OfferID{Value: proto.String(offerID)},
		&mesos.Filters{RefuseSeconds: proto.Float64(1)},
	)
	return err
}

// KillTask implements internal/scheduler.Driver.
func (d *Driver) KillTask(taskID string) error {
	sd, err := d.connected()
	if err != nil {
		return err
	}
	_, err = sd.KillTask(&mesos.TaskID{Value: proto.String(taskID)})
	return err
}

func (d *Driver) connected() (mesossched.SchedulerDriver, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.sd == nil {
		return nil, fmt.Errorf("framework: not yet registered with a mesos master")
	}
	return d.sd, nil
}

// offerFromMesos converts a mesos offer into the core's opaque view,
// carrying only the resources the matcher understands: cpus, mem and the
// dataDisks set (spec.md §3).
func offerFromMesos(o *mesos.Offer) *model.Offer {
	res := make([]model.OfferResource, 0, len(o.GetResources()))
	for _, r := range o.GetResources() {
		switch r.GetType() {
		case mesos.Value_SCALAR:
			res = append(res, model.OfferResource{
				Name:     r.GetName(),
				Scalar:   r.GetScalar().GetValue(),
				IsScalar: true,
			})
		case mesos.Value_SET:
			res = append(res, model.OfferResource{
				Name:      r.GetName(),
				SetItems:  append([]string{}, r.GetSet().GetItem()...),
				IsDiskSet: r.GetName() == "dataDisks",
			})
		}
	}
	return &model.Offer{
		ID:        o.GetId().GetValue(),
		SlaveID:   o.GetSlaveId().GetValue(),
		Host:      o.GetHostname(),
		Resources: res,
	}
}

// taskInfoFromTask converts a placed Job's Task descriptor into a mesos
// TaskInfo, shipping the allocated disks as a "dataDisks" set resource so
// the executor can see which disks it was actually given, and attaching
// the executor that actually runs the node (spec.md §4.6 "task_from
// produces a descriptor with executor attached"). A TaskInfo with neither
// Executor nor Command is rejected by a real master, so this is not
// optional.
func (d *Driver) taskInfoFromTask(t *model.Task) *mesos.TaskInfo {
	resources := []*mesos.Resource{
		util.NewScalarResource("cpus", float64(t.CPUs)),
		util.NewScalarResource("mem", float64(t.Mem)),
	}
	if len(t.Disks) > 0 {
		resources = append(resources, &mesos.Resource{
			Name: proto.String("dataDisks"),
			Type: mesos.Value_SET.Enum(),
			Set:  &mesos.Value_Set{Item: t.Disks},
		})
	}
	return &mesos.TaskInfo{
		Name:      proto.String(t.Name),
		TaskId:    &mesos.TaskID{Value: proto.String(t.TaskID)},
		SlaveId:   &mesos.SlaveID{Value: proto.String(t.SlaveID)},
		Executor:  d.newExecutorInfo(t),
		Data:      t.Data,
		Resources: resources,
	}
}

// newExecutorInfo builds the ExecutorInfo launched on the slave to run
// task, wrapping EXECUTOR_COMMAND the way
// bluepeppers-etcd-mesos/scheduler/scheduler.go's newExecutorInfo wraps
// ExecutorPath.
func (d *Driver) newExecutorInfo(t *model.Task) *mesos.ExecutorInfo {
	return &mesos.ExecutorInfo{
		ExecutorId: util.NewExecutorID(t.TaskID),
		Name:       proto.String("scheduler-executor"),
		Source:     proto.String("scheduler"),
		Command: &mesos.CommandInfo{
			Value: proto.String(d.executorCommand),
		},
		Resources: []*mesos.Resource{
			util.NewScalarResource("cpus", 0.1),
			util.NewScalarResource("mem", 32),
		},
	}
}
