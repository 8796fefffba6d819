package glass

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/glass/gpucore"
	"github.com/gogpu/glass/internal/gpu"
	"github.com/gogpu/glass/internal/software"
)

// Backend names.
const (
	// BackendGPU renders with gogpu/wgpu on a hal device.
	BackendGPU = "gpu"

	// BackendSoftware evaluates every pass on the CPU.
	BackendSoftware = "software"
)

// ErrNoBackend is returned when no registered backend could create an
// adapter.
var ErrNoBackend = errors.New("glass: no backend available")

// BackendFactory creates an adapter.
type BackendFactory func() (gpucore.GPUAdapter, error)

// backends holds the adapter factories, tried in priority order.
var backends = gpucontext.NewRegistry[BackendFactory](
	gpucontext.WithPriority(BackendGPU, BackendSoftware),
)

func init() {
	RegisterBackend(BackendGPU, func() (gpucore.GPUAdapter, error) {
		a, err := gpu.Open()
		if err != nil {
			return nil, err
		}
		return a, nil
	})
	RegisterBackend(BackendSoftware, func() (gpucore.GPUAdapter, error) {
		return software.New(), nil
	})
}

// RegisterBackend adds or replaces a named backend.
func RegisterBackend(name string, factory BackendFactory) {
	backends.Register(name, func() BackendFactory { return factory })
}

// UnregisterBackend removes a named backend.
func UnregisterBackend(name string) {
	backends.Unregister(name)
}

// Backends returns the registered backend names in priority order.
func Backends() []string {
	names := backends.Available()
	slices.SortFunc(names, func(a, b string) int {
		if d := backendRank(a) - backendRank(b); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})
	return names
}

func backendRank(name string) int {
	switch name {
	case BackendGPU:
		return 0
	case BackendSoftware:
		return 1
	default:
		return 2
	}
}

// NewAdapter creates an adapter on the best backend that succeeds.
// A backend that fails is logged and the next one is tried.
func NewAdapter() (gpucore.GPUAdapter, error) {
	var errs []error
	for _, name := range Backends() {
		a, err := NewAdapterNamed(name)
		if err == nil {
			return a, nil
		}
		Logger().Warn("glass: backend unavailable", "backend", name, "err", err)
		errs = append(errs, err)
	}
	return nil, errors.Join(append([]error{ErrNoBackend}, errs...)...)
}

// NewAdapterNamed creates an adapter on the named backend.
func NewAdapterNamed(name string) (gpucore.GPUAdapter, error) {
	if !backends.Has(name) {
		return nil, fmt.Errorf("glass: backend %q: %w", name, ErrNoBackend)
	}
	a, err := backends.Get(name)()
	if err != nil {
		return nil, fmt.Errorf("glass: backend %q: %w", name, err)
	}
	Logger().Info("glass: backend selected", "backend", name, "adapter", a.Name())
	return a, nil
}

// AdapterFromProvider creates an adapter on a host window's device. The
// provider must also expose HalDevice() and HalQueue(). The returned
// option matches the scene's target format to the provider's surface.
func AdapterFromProvider(provider gpucontext.DeviceProvider) (gpucore.GPUAdapter, SceneOption, error) {
	a, err := gpu.FromProvider(provider)
	if err != nil {
		return nil, nil, fmt.Errorf("glass: %w", err)
	}
	format := provider.SurfaceFormat()
	if format == gputypes.TextureFormatUndefined {
		format = defaultSceneOptions().format
	}
	return a, WithSurfaceFormat(format), nil
}
