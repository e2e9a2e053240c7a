package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bigdatacesga/scheduler/internal/model"
)

func strptr(s string) *string { return &s }

func TestMatchHost(t *testing.T) {
	assert.True(t, MatchHost("c14-5", nil))
	assert.True(t, MatchHost("c14-5", strptr("c14-5")))
	assert.False(t, MatchHost("c14-1", strptr("c13-9")))
}

func TestHasEnoughDisksCount(t *testing.T) {
	assert.True(t, HasEnoughDisks([]string{"disk1", "disk2"}, model.CountSpec(1)))
	assert.True(t, HasEnoughDisks([]string{"disk1", "disk2"}, model.CountSpec(2)))
	assert.False(t, HasEnoughDisks([]string{"disk1"}, model.CountSpec(2)))
}

func TestHasEnoughDisksNamed(t *testing.T) {
	offered := []string{"disk1", "disk2"}
	assert.True(t, HasEnoughDisks(offered, model.NamedSpec([]string{"disk1"})))
	assert.False(t, HasEnoughDisks(offered, model.NamedSpec([]string{"disk8"})))
}

func TestSelectDisksCountIsStablePrefix(t *testing.T) {
	offered := []string{"disk1", "disk2", "disk3"}
	got := SelectDisks(offered, model.CountSpec(2))
	assert.Equal(t, []string{"disk1", "disk2"}, got)
}

func TestSelectDisksCountClampsToAvailable(t *testing.T) {
	offered := []string{"disk1"}
	got := SelectDisks(offered, model.CountSpec(5))
	assert.Equal(t, []string{"disk1"}, got)
}

func TestSelectDisksNamed(t *testing.T) {
	got := SelectDisks([]string{"disk1", "disk2"}, model.NamedSpec([]string{"disk2"}))
	assert.Equal(t, []string{"disk2"}, got)
}

func TestRemoveDisksPreservesOrder(t *testing.T) {
	offered := []string{"disk1", "disk2", "disk3"}
	got := RemoveDisks(offered, []string{"disk2"})
	assert.Equal(t, []string{"disk1", "disk3"}, got)
}

func TestOfferHasEnoughResources(t *testing.T) {
	job := &model.Job{CPUs: 2, Mem: 1024, Disks: model.CountSpec(1)}
	fits := model.Resources{Host: "c14-5", CPUs: 12, Mem: 8096, Disks: []string{"disk1", "disk2"}}
	assert.True(t, OfferHasEnoughResources(fits, job))

	short := model.Resources{Host: "c14-5", CPUs: 1, Mem: 8096, Disks: []string{"disk1"}}
	assert.False(t, OfferHasEnoughResources(short, job))
}

func TestOfferHasEnoughResourcesRequiresKnownDiskSet(t *testing.T) {
	job := &model.Job{CPUs: 1, Mem: 1, Disks: model.CountSpec(1)}
	noDisksObserved := model.Resources{Host: "c14-5", CPUs: 12, Mem: 8096, Disks: nil}
	assert.False(t, OfferHasEnoughResources(noDisksObserved, job))
}

func TestOfferHasEnoughResourcesHostAffinity(t *testing.T) {
	job := &model.Job{CPUs: 1, Mem: 1, Disks: model.CountSpec(1), Host: strptr("c13-9")}
	fromOtherHost := model.Resources{Host: "c14-1", CPUs: 12, Mem: 8096, Disks: []string{"disk1"}}
	assert.False(t, OfferHasEnoughResources(fromOtherHost, job))

	fromRightHost := model.Resources{Host: "c13-9", CPUs: 12, Mem: 8096, Disks: []string{"disk1"}}
	assert.True(t, OfferHasEnoughResources(fromRightHost, job))
}

func TestResourcesFromAggregatesScalarsAndDiskSet(t *testing.T) {
	offer := model.Offer{
		Host: "c14-5",
		Resources: []model.OfferResource{
			{Name: "cpus", Scalar: 12, IsScalar: true},
			{Name: "mem", Scalar: 8096, IsScalar: true},
			{Name: "dataDisks", SetItems: []string{"disk1", "disk2"}, IsDiskSet: true},
			{Name: "ports", IsScalar: false},
		},
	}
	r := ResourcesFrom(offer)
	assert.Equal(t, "c14-5", r.Host)
	assert.Equal(t, 12, r.CPUs)
	assert.Equal(t, 8096, r.Mem)
	assert.Equal(t, []string{"disk1", "disk2"}, r.Disks)
}

func TestResourcesFromLeavesDisksNilWithoutADataDisksResource(t *testing.T) {
	offer := model.Offer{
		Host: "c14-5",
		Resources: []model.OfferResource{
			{Name: "cpus", Scalar: 12, IsScalar: true},
		},
	}
	r := ResourcesFrom(offer)
	assert.Nil(t, r.Disks)
}
