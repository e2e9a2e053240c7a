// Package matcher implements the pure resource-matching predicates used by
// the scheduler core to decide whether a Job fits an offer's Resources,
// and to select which disks a Job consumes. No I/O, no logging: every
// function here is a pure transformation over values.
package matcher

import "github.com/bigdatacesga/scheduler/internal/model"

// MatchHost reports whether offeredHost satisfies a job's host
// requirement. A nil requirement always matches.
func MatchHost(offeredHost string, required *string) bool {
	if required == nil {
		return true
	}
	return offeredHost == *required
}

// HasEnoughDisks reports whether offered contains the disks required by
// spec: every named disk for a Named spec, or at least N disks for a
// Count spec.
func HasEnoughDisks(offered []string, spec model.DiskSpec) bool {
	switch spec.Kind {
	case model.Named:
		have := make(map[string]bool, len(offered))
		for _, d := range offered {
			have[d] = true
		}
		for _, want := range spec.Names {
			if !have[want] {
				return false
			}
		}
		return true
	default:
		return len(offered) >= spec.N
	}
}

// SelectDisks picks the disks a job consumes from the offered set: the
// named disks verbatim for a Named spec, or the first N entries in
// offered order for a Count spec (stable prefix selection).
func SelectDisks(offered []string, spec model.DiskSpec) []string {
	switch spec.Kind {
	case model.Named:
		out := make([]string, len(spec.Names))
		copy(out, spec.Names)
		return out
	default:
		n := spec.N
		if n > len(offered) {
			n = len(offered)
		}
		out := make([]string, n)
		copy(out, offered[:n])
		return out
	}
}

// RemoveDisks returns offered with every disk in used removed, preserving
// offered's order.
func RemoveDisks(offered, used []string) []string {
	usedSet := make(map[string]int, len(used))
	for _, u := range used {
		usedSet[u]++
	}
	out := make([]string, 0, len(offered))
	for _, d := range offered {
		if usedSet[d] > 0 {
			usedSet[d]--
			continue
		}
		out = append(out, d)
	}
	return out
}

// OfferHasEnoughResources reports whether available resources satisfy a
// job's requirements: enough cpus, enough mem, a known (non-nil) disk
// set containing enough/matching disks, and a matching host.
func OfferHasEnoughResources(available model.Resources, job *model.Job) bool {
	if available.CPUs < job.CPUs {
		return false
	}
	if available.Mem < job.Mem {
		return false
	}
	if available.Disks == nil {
		return false
	}
	if !HasEnoughDisks(available.Disks, job.Disks) {
		return false
	}
	return MatchHost(available.Host, job.Host)
}

// ResourcesFrom extracts cpus, mem and the dataDisks set from an offer's
// resource list, along with the offering host. It leaves Disks nil if the
// offer carried no dataDisks resource at all, matching spec.md §4.2's
// "r.disks ≠ null" requirement in OfferHasEnoughResources.
func ResourcesFrom(offer model.Offer) model.Resources {
	r := model.Resources{Host: offer.Host}
	sawDisks := false
	for _, res := range offer.Resources {
		switch {
		case res.Name == "cpus" && res.IsScalar:
			r.CPUs += int(res.Scalar)
		case res.Name == "mem" && res.IsScalar:
			r.Mem += int(res.Scalar)
		case res.Name == "dataDisks" && res.IsDiskSet:
			sawDisks = true
			r.Disks = append(r.Disks, res.SetItems...)
		}
	}
	if sawDisks && r.Disks == nil {
		r.Disks = []string{}
	}
	return r
}
