// Package disks implements the Disks Client contract of spec.md §4.4:
// GET disk info, PUT a disk as used. Adapted from
// bluepeppers-etcd-mesos/rpc/membership.go's http.Client-with-timeout and
// backoff shape, replacing the hand-rolled backoff loop with
// avast/retry-go for this specific I/O edge (see DESIGN.md).
package disks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go"
	log "github.com/golang/glog"
)

const requestTimeout = 5 * time.Second

// DiskServiceError is returned by GetDiskInfo and SetDiskAsUsed for any
// failure: a non-success response from the disks service, a timeout, or
// exhaustion of retries attempting to reach it.
type DiskServiceError struct {
	Op      string
	Status  int
	Message string
}

func (e *DiskServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("disks service: %s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("disks service: %s: %s", e.Op, e.Message)
}

// DiskInfo is the disks service's description of a single disk.
type DiskInfo struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
}

// Client talks to the disks service over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Retries uint
}

// New returns a Client pointed at baseURL (e.g.
// "http://disks.service.int.cesga.es:5000/resources/disks/v1").
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: requestTimeout},
		Retries: 3,
	}
}

// GetDiskInfo fetches path/mode info for a disk on host via GET
// <base>/<host>/disks/<disk>.
func (c *Client) GetDiskInfo(ctx context.Context, host, disk string) (DiskInfo, error) {
	u := fmt.Sprintf("%s/%s/disks/%s", c.BaseURL, host, url.PathEscape(disk))

	var info DiskInfo
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.HTTP.Do(req)
			if err != nil {
				log.Warningf("disks: GET %s failed: %v", u, err)
				return err
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusOK {
				return &DiskServiceError{Op: "get_disk_info", Status: resp.StatusCode, Message: string(body)}
			}

			var payload map[string]DiskInfo
			if err := json.Unmarshal(body, &payload); err != nil {
				return retry.Unrecoverable(&DiskServiceError{Op: "get_disk_info", Message: "malformed response: " + err.Error()})
			}
			v, ok := payload[disk]
			if !ok {
				return retry.Unrecoverable(&DiskServiceError{Op: "get_disk_info", Message: "response missing disk " + disk})
			}
			info = v
			return nil
		},
		retry.Attempts(c.Retries),
		retry.Context(ctx),
	)
	if err != nil {
		return DiskInfo{}, &DiskServiceError{Op: "get_disk_info", Message: err.Error()}
	}
	return info, nil
}

// SetDiskAsUsed marks disk on host as used by node (identified by its
// dn/clustername), via PUT <base>/<host>/disks/<disk>. Success on 204.
func (c *Client) SetDiskAsUsed(ctx context.Context, host, nodeDN, disk string) error {
	u := fmt.Sprintf("%s/%s/disks/%s", c.BaseURL, host, url.PathEscape(disk))
	form := url.Values{
		"status":      {"used"},
		"clustername": {nodeDN},
		"node":        {host},
	}

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewBufferString(form.Encode()))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			resp, err := c.HTTP.Do(req)
			if err != nil {
				log.Warningf("disks: PUT %s failed: %v", u, err)
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusNoContent {
				body, _ := io.ReadAll(resp.Body)
				return &DiskServiceError{Op: "set_disk_as_used", Status: resp.StatusCode, Message: string(body)}
			}
			return nil
		},
		retry.Attempts(c.Retries),
		retry.Context(ctx),
	)
	if err != nil {
		return &DiskServiceError{Op: "set_disk_as_used", Message: err.Error()}
	}
	return nil
}
