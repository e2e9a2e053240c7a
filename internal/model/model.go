// Package model defines the data types shared across the scheduler:
// Cluster, Node, Job, DiskSpec, Disk, Resources and Task.
package model

import (
	"fmt"
	"strings"
)

// ClusterStatus is the lifecycle state of a Cluster.
type ClusterStatus string

const (
	StatusQueued    ClusterStatus = "queued"
	StatusLaunching ClusterStatus = "launching"
	StatusExecuting ClusterStatus = "executing"
	StatusFailed    ClusterStatus = "failed"
)

// NodeStatus is the lifecycle state of a single Node.
type NodeStatus string

const (
	NodeQueued    NodeStatus = "queued"
	NodeLaunching NodeStatus = "launching"
	NodeRunning   NodeStatus = "running"
	NodeFailed    NodeStatus = "failed"
)

// DiskSpecKind distinguishes between the two DiskSpec variants.
type DiskSpecKind int

const (
	// Count requests any N disks.
	Count DiskSpecKind = iota
	// Named requests specific, named disks.
	Named
)

// DiskSpec is a tagged variant: either "any N disks" or "these named disks".
type DiskSpec struct {
	Kind  DiskSpecKind
	N     int
	Names []string
}

// CountSpec builds a DiskSpec requesting any n disks.
func CountSpec(n int) DiskSpec {
	return DiskSpec{Kind: Count, N: n}
}

// NamedSpec builds a DiskSpec requesting the given named disks.
func NamedSpec(names []string) DiskSpec {
	return DiskSpec{Kind: Named, Names: names}
}

// Disk is a per-node disk record populated at placement time.
type Disk struct {
	Name        string `json:"name"`
	MesosName   string `json:"mesos_name"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Mode        string `json:"mode"`
}

// Node is one member of a Cluster: the unit of placement.
type Node struct {
	DN     string     `json:"dn"`
	Name   string     `json:"name"`
	CPU    int        `json:"cpu"`
	Mem    int        `json:"mem"`
	Disks  DiskSpec   `json:"disks"`
	Host   *string    `json:"host,omitempty"`
	Status NodeStatus `json:"status"`

	NodeDisks []*Disk `json:"node_disks"`

	SlaveID  string `json:"slave_id,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	OfferID  string `json:"offer_id,omitempty"`
}

// ID returns the last path segment of the node's dn.
func (n *Node) ID() string {
	return IDFromDN(n.DN)
}

// Cluster is a submitted multi-node service instance.
type Cluster struct {
	DN       string        `json:"dn"`
	Nodes    []*Node       `json:"nodes"`
	Status   ClusterStatus `json:"status"`
	Step     int           `json:"step"`
	Progress int           `json:"progress"`
}

// ID returns the last path segment of the cluster's dn.
func (c *Cluster) ID() string {
	return IDFromDN(c.DN)
}

// Job is the queued representation of a Node ready to place.
type Job struct {
	Name  string
	CPUs  int
	Mem   int
	Disks DiskSpec
	Host  *string
	Node  *Node

	SlaveID  string
	Hostname string
	OfferID  string
}

// JobFromNode wraps a Node as a Job.
func JobFromNode(node *Node) *Job {
	return &Job{
		Name:  node.Name,
		CPUs:  node.CPU,
		Mem:   node.Mem,
		Disks: node.Disks,
		Host:  node.Host,
		Node:  node,
	}
}

// Resources is the matcher's mutable view of a single offer's free capacity.
type Resources struct {
	Host  string
	CPUs  int
	Mem   int
	Disks []string
}

// Task is the launch descriptor built for a placed Job.
type Task struct {
	TaskID  string
	SlaveID string
	Name    string
	Data    []byte
	CPUs    int
	Mem     int
	Disks   []string
}

// OfferResource is a single resource entry within an Offer: either a
// scalar (cpus, mem) or a set (dataDisks).
type OfferResource struct {
	Name      string
	Scalar    float64
	IsScalar  bool
	SetItems  []string
	IsDiskSet bool
}

// Offer is the core's view of a single resource offer: opaque except for
// id, slave id, host and its resource list (spec.md §3).
type Offer struct {
	ID        string
	SlaveID   string
	Host      string
	Resources []OfferResource
}

// IDFromDN returns the last path segment of dn.
func IDFromDN(dn string) string {
	dn = strings.TrimRight(dn, "/")
	parts := strings.Split(dn, "/")
	return parts[len(parts)-1]
}

// DNFromID reconstructs a dn from an id under the given conventional root,
// e.g. DNFromID("instances/hadoop/2.7", "c1") == "instances/hadoop/2.7/c1".
func DNFromID(root, id string) string {
	root = strings.TrimRight(root, "/")
	return fmt.Sprintf("%s/%s", root, id)
}

// DiskPath computes the origin/destination path for a disk allocated to a
// node: "/data/<N>/<node-id>" where N is the numeric suffix of the disk
// name (e.g. "disk3" -> "3").
func DiskPath(diskName, nodeID string) string {
	n := diskName
	for i := len(diskName) - 1; i >= 0; i-- {
		if diskName[i] < '0' || diskName[i] > '9' {
			n = diskName[i+1:]
			break
		}
		if i == 0 {
			n = diskName
		}
	}
	return fmt.Sprintf("/data/%s/%s", n, nodeID)
}
