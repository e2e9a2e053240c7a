// Package registry implements the Registry Client contract of spec.md
// §4.3: dn-addressed read/write access to Cluster and Node entities,
// backed by a consul KV store, exactly the way the original
// bigdatacesga/scheduler's "registry" module connected to
// http://consul:8500/v1/kv.
package registry

import (
	"encoding/json"
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
	log "github.com/golang/glog"

	"github.com/bigdatacesga/scheduler/internal/apierr"
	"github.com/bigdatacesga/scheduler/internal/model"
)

// Client wraps a consul KV handle and provides typed Cluster/Node
// accessors addressed by dn.
type Client struct {
	kv *consulapi.KV
}

// Connect dials the registry at endpoint (a consul agent address, e.g.
// "consul.service.consul:8500").
func Connect(endpoint string) (*Client, error) {
	cfg := consulapi.DefaultConfig()
	if endpoint != "" {
		cfg.Address = endpoint
	}
	c, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("registry: connect %s: %w", endpoint, err)
	}
	return &Client{kv: c.KV()}, nil
}

// IDFromDN returns the last path segment of dn (spec.md §8 "ID
// bijection").
func IDFromDN(dn string) string { return model.IDFromDN(dn) }

// DNFromID reconstructs a dn from an id under the given conventional root
// (the inverse of IDFromDN).
func DNFromID(root, id string) string { return model.DNFromID(root, id) }

// GetCluster reads the Cluster entity stored at dn.
func (c *Client) GetCluster(dn string) (*model.Cluster, error) {
	pair, _, err := c.kv.Get(dn, nil)
	if err != nil {
		return nil, apierr.Resource("registry get cluster "+dn, err)
	}
	if pair == nil {
		return nil, apierr.NotFound("unknown cluster: " + dn)
	}
	var cluster model.Cluster
	if err := json.Unmarshal(pair.Value, &cluster); err != nil {
		return nil, apierr.Protocol("registry: malformed cluster entity at " + dn)
	}
	return &cluster, nil
}

// PutCluster writes the Cluster entity at its dn. Per spec.md §4.3, writes
// to a single key are linearisable; the core never relies on atomicity
// across distinct keys.
func (c *Client) PutCluster(cluster *model.Cluster) error {
	data, err := json.Marshal(cluster)
	if err != nil {
		return apierr.Internal("marshal cluster", err)
	}
	if _, err := c.kv.Put(&consulapi.KVPair{Key: cluster.DN, Value: data}, nil); err != nil {
		log.Errorf("registry: failed to write cluster %s: %v", cluster.DN, err)
		return apierr.Resource("registry put cluster "+cluster.DN, err)
	}
	return nil
}

// GetNode reads the Node entity stored at dn.
func (c *Client) GetNode(dn string) (*model.Node, error) {
	pair, _, err := c.kv.Get(dn, nil)
	if err != nil {
		return nil, apierr.Resource("registry get node "+dn, err)
	}
	if pair == nil {
		return nil, apierr.NotFound("unknown node: " + dn)
	}
	var node model.Node
	if err := json.Unmarshal(pair.Value, &node); err != nil {
		return nil, apierr.Protocol("registry: malformed node entity at " + dn)
	}
	return &node, nil
}

// PutNode writes the Node entity at its dn.
func (c *Client) PutNode(node *model.Node) error {
	data, err := json.Marshal(node)
	if err != nil {
		return apierr.Internal("marshal node", err)
	}
	if _, err := c.kv.Put(&consulapi.KVPair{Key: node.DN, Value: data}, nil); err != nil {
		log.Errorf("registry: failed to write node %s: %v", node.DN, err)
		return apierr.Resource("registry put node "+node.DN, err)
	}
	return nil
}

// PutString stores an opaque string value at key — used by the Framework
// Driver to persist its FrameworkID instead of standing up a second KV
// system (see SPEC_FULL.md's Domain Stack note on the dropped zk dep).
func (c *Client) PutString(key, value string) error {
	if _, err := c.kv.Put(&consulapi.KVPair{Key: key, Value: []byte(value)}, nil); err != nil {
		return apierr.Resource("registry put "+key, err)
	}
	return nil
}

// GetString reads an opaque string value at key. Returns ok=false if the
// key does not exist.
func (c *Client) GetString(key string) (value string, ok bool, err error) {
	pair, _, err := c.kv.Get(key, nil)
	if err != nil {
		return "", false, apierr.Resource("registry get "+key, err)
	}
	if pair == nil {
		return "", false, nil
	}
	return string(pair.Value), true, nil
}
