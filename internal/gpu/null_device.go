package gpu

import "errors"

// ErrCreateFailed is returned by NullDevice when creation is forced to fail.
var ErrCreateFailed = errors.New("gpu: texture creation failed")

// NullDevice implements Device without a GPU. It tracks issued handles so
// tests can assert on resource lifetimes, and can be forced to fail
// creation to exercise error paths.
type NullDevice struct {
	next TextureHandle

	// FailNextCreate makes the next CreateDepthTexture call return
	// ErrCreateFailed, then resets itself.
	FailNextCreate bool

	Created   int
	Destroyed int
	Cleared   int

	// Live maps issued handles to their texture size.
	Live map[TextureHandle]int
}

// NewNullDevice creates an empty null device.
func NewNullDevice() *NullDevice {
	return &NullDevice{Live: map[TextureHandle]int{}}
}

// CreateDepthTexture issues a fresh handle.
func (d *NullDevice) CreateDepthTexture(size int) (TextureHandle, error) {
	if d.FailNextCreate {
		d.FailNextCreate = false
		return NilTexture, ErrCreateFailed
	}
	d.next++
	d.Created++
	d.Live[d.next] = size
	return d.next, nil
}

// DestroyTexture forgets the handle.
func (d *NullDevice) DestroyTexture(handle TextureHandle) {
	if _, ok := d.Live[handle]; !ok {
		return
	}
	delete(d.Live, handle)
	d.Destroyed++
}

// ClearDepth counts the clear.
func (d *NullDevice) ClearDepth(handle TextureHandle, size int) {
	d.Cleared++
}
