package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Register the platform's hal backends via init().
	_ "github.com/gogpu/wgpu/hal/allbackends"
)

// Errors returned when no device can be obtained.
var (
	// ErrNoAdapter is returned when the selected backend exposes no adapter.
	ErrNoAdapter = errors.New("gpu: no adapter found")

	// ErrNotHALProvider is returned by FromProvider when the provider does
	// not expose hal types.
	ErrNotHALProvider = errors.New("gpu: provider does not expose hal device and queue")
)

// Open creates an adapter on its own device, using the most capable hal
// backend registered on this platform. A discrete or integrated GPU is
// preferred over other adapters.
func Open(opts ...Option) (*HALAdapter, error) {
	backend, err := hal.SelectBestBackend()
	if err != nil {
		return nil, fmt.Errorf("gpu: select backend: %w", err)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	dev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open device: %w", err)
	}

	a := New(dev.Device, dev.Queue, opts...)
	a.instance = instance
	a.owned = true
	slogger().Info("gpu: device opened", "backend", backend.Variant().String(), "adapter", selected.Info.Name)
	return a, nil
}

// FromProvider creates an adapter on a device shared by a host window.
// The provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue. The device stays owned by the provider.
func FromProvider(provider any, opts ...Option) (*HALAdapter, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNotHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNotHALProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNotHALProvider)
	}
	slogger().Info("gpu: using shared device")
	return New(device, queue, opts...), nil
}
