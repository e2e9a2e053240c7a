package model

import "testing"

func TestIDFromDN(t *testing.T) {
	cases := map[string]string{
		"instances/hadoop/2.7/c1":             "c1",
		"instances/hadoop/2.7/c1/":            "c1",
		"instances/hadoop/2.7/c1/nodes/node1": "node1",
		"c1":                                  "c1",
	}
	for dn, want := range cases {
		if got := IDFromDN(dn); got != want {
			t.Errorf("IDFromDN(%q) = %q, want %q", dn, got, want)
		}
	}
}

func TestDNFromIDBijection(t *testing.T) {
	roots := []string{"instances/hadoop/2.7", "instances/hadoop/2.7/"}
	for _, root := range roots {
		dn := DNFromID(root, "c1")
		if got := IDFromDN(dn); got != "c1" {
			t.Errorf("IDFromDN(DNFromID(%q, c1)) = %q, want c1", root, got)
		}
	}
}

func TestDiskPath(t *testing.T) {
	cases := []struct {
		disk, node, want string
	}{
		{"disk3", "node1", "/data/3/node1"},
		{"disk12", "node2", "/data/12/node2"},
		{"disk0", "node3", "/data/0/node3"},
	}
	for _, c := range cases {
		if got := DiskPath(c.disk, c.node); got != c.want {
			t.Errorf("DiskPath(%q, %q) = %q, want %q", c.disk, c.node, got, c.want)
		}
	}
}

func TestJobFromNodeCarriesNodeFields(t *testing.T) {
	n := &Node{
		DN:    "instances/hadoop/2.7/c1/nodes/node1",
		Name:  "node1",
		CPU:   4,
		Mem:   2048,
		Disks: CountSpec(2),
	}
	job := JobFromNode(n)
	if job.Name != n.Name || job.CPUs != n.CPU || job.Mem != n.Mem {
		t.Fatalf("JobFromNode did not carry node fields: %+v", job)
	}
	if job.Node != n {
		t.Fatalf("JobFromNode should keep a pointer back to the originating node")
	}
}
