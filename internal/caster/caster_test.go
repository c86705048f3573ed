package caster

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelcaster/internal/device"
	"voxelcaster/internal/device/host"
	"voxelcaster/internal/kernels"
)

type canvas struct {
	w, h int
	pix  []byte
}

func (c *canvas) Size() (int, int) { return c.w, c.h }
func (c *canvas) Pixels() []byte   { return c.pix }

type testInterop struct {
	err error
}

func (testInterop) Name() string { return "test" }

func (i testInterop) Properties(p device.PlatformID) (device.Properties, error) {
	if i.err != nil {
		return device.Properties{}, i.err
	}
	return device.Properties{Platform: p, Sharing: device.SharingHostMirror, Backend: "test"}, nil
}

func (testInterop) NewSurface(w, h int) (device.Surface, error) {
	return &canvas{w: w, h: h, pix: make([]byte, w*h*4)}, nil
}

type recordingTarget struct {
	drawn []device.Surface
}

func (r *recordingTarget) DrawSurface(s device.Surface) error {
	r.drawn = append(r.drawn, s)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func source(t *testing.T, name string) string {
	t.Helper()
	src, err := kernels.Source(name)
	require.NoError(t, err)
	return src
}

// newCaster initialises a Caster on drv. With a kernel name, the embedded
// source of that kernel is compiled by Init.
func newCaster(t *testing.T, drv *host.Driver, kernel string) *Caster {
	t.Helper()
	opts := Options{Driver: drv, Interop: testInterop{}, Logger: quietLogger(), KernelName: kernels.Passthrough}
	if kernel != "" {
		opts.KernelName = kernel
		opts.KernelSource = source(t, kernel)
	}
	c, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, c.Init())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// passthroughFrame is a 2x2 viewport with input bound to the passthrough
// kernel's input and the viewport image to its output.
func passthroughFrame(t *testing.T, drv *host.Driver) (*Caster, []byte) {
	t.Helper()
	c := newCaster(t, drv, kernels.Passthrough)
	require.NoError(t, c.CreateViewport(2, 2, 60, 60))
	input := []byte{
		10, 20, 30, 255, 40, 50, 60, 255,
		70, 80, 90, 255, 100, 110, 120, 255,
	}
	require.NoError(t, c.CreateBuffer("input", len(input), input, ReadOnly))
	require.NoError(t, c.BindLayout(kernels.Passthrough, []string{"input", BufImage}))
	return c, input
}

func TestComputePassthroughEndToEnd(t *testing.T) {
	drv := host.Default()
	c, input := passthroughFrame(t, drv)
	require.NoError(t, c.Validate())
	require.NoError(t, c.Compute())

	out := make([]byte, len(input))
	require.NoError(t, c.ReadBuffer(BufImage, 0, out))
	assert.Equal(t, input, out)
	assert.Equal(t, uint64(1), c.Frames())

	target := &recordingTarget{}
	require.NoError(t, c.Draw(target))
	require.Len(t, target.drawn, 1)
	assert.Equal(t, input, target.drawn[0].Pixels())
}

func TestComputeBeforeValidateDoesNotDispatch(t *testing.T) {
	drv := host.Default()
	c, _ := passthroughFrame(t, drv)

	err := c.Compute()
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.ErrorIs(t, err, ErrNotValidated)
	assert.Zero(t, drv.Dispatches())
}

func TestRecompileRequiresValidation(t *testing.T) {
	drv := host.Default()
	c, _ := passthroughFrame(t, drv)
	require.NoError(t, c.Validate())
	require.NoError(t, c.Compute())
	require.Equal(t, 1, drv.Dispatches())

	require.NoError(t, c.CompileKernel(source(t, kernels.Passthrough), false, kernels.Passthrough))
	assert.False(t, c.Validated())
	err := c.Validate()
	assert.ErrorIs(t, err, ErrUnbound, "recompiling drops bindings")

	require.NoError(t, c.BindLayout(kernels.Passthrough, []string{"input", BufImage}))
	assert.ErrorIs(t, c.Compute(), ErrNotValidated)
	assert.Equal(t, 1, drv.Dispatches())

	require.NoError(t, c.Validate())
	require.NoError(t, c.Compute())
	assert.Equal(t, 2, drv.Dispatches())
}

func TestValidateTracksEverySlot(t *testing.T) {
	c := newCaster(t, host.Default(), kernels.Passthrough)
	require.NoError(t, c.CreateViewport(2, 2, 60, 60))
	require.NoError(t, c.CreateBuffer("input", 16, nil, ReadOnly))

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "passthrough[0], passthrough[1]")

	require.NoError(t, c.SetKernelArg(kernels.Passthrough, 0, "input"))
	assert.ErrorIs(t, c.Validate(), ErrUnbound)

	require.NoError(t, c.SetKernelArg(kernels.Passthrough, 1, BufImage))
	require.NoError(t, c.Validate())
	assert.True(t, c.Validated())

	require.NoError(t, c.ReleaseBuffer("input"))
	assert.False(t, c.Validated())
	err = c.Validate()
	assert.ErrorIs(t, err, ErrUnbound)
	assert.Contains(t, err.Error(), "passthrough[0]")
}

func TestSetKernelArgMissingNames(t *testing.T) {
	c, _ := passthroughFrame(t, host.Default())
	require.NoError(t, c.Validate())
	before := c.DescribeKernels()
	gen := c.Generation()

	for _, tc := range []struct {
		kernel, buffer string
	}{
		{"missing", "input"},
		{kernels.Passthrough, "missing"},
		{"missing", "missing"},
	} {
		err := c.SetKernelArg(tc.kernel, 0, tc.buffer)
		require.Error(t, err)
		assert.Equal(t, KindRegistry, KindOf(err))
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.ErrorIs(t, c.SetKernelArg(kernels.Passthrough, 2, "input"), ErrArgIndex)
	assert.ErrorIs(t, c.BindLayout(kernels.Passthrough, []string{"input", "missing"}), ErrNotFound)

	assert.Equal(t, before, c.DescribeKernels())
	assert.Equal(t, gen, c.Generation())
	assert.True(t, c.Validated())
}

func TestBufferLifecycleReturnsToBaseline(t *testing.T) {
	drv := host.Default()
	c := newCaster(t, drv, "")
	base := drv.Allocations()

	for _, tc := range []struct {
		name string
		size int
		data []byte
	}{
		{"one", 1, []byte{7}},
		{"empty-host", 64, nil},
		{"page", 4096, make([]byte, 4096)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, c.CreateBuffer(tc.name, tc.size, tc.data, ReadWrite))
			info, ok := c.Buffer(tc.name)
			require.True(t, ok)
			assert.Equal(t, tc.size, info.Size)
			assert.Equal(t, base+1, drv.Allocations())

			require.NoError(t, c.ReleaseBuffer(tc.name))
			_, ok = c.Buffer(tc.name)
			assert.False(t, ok)
			assert.Equal(t, base, drv.Allocations())
		})
	}

	err := c.ReleaseBuffer("never")
	assert.Equal(t, KindRegistry, KindOf(err))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBufferCreationFailureLeavesRegistryUnchanged(t *testing.T) {
	drv := host.Default()
	c := newCaster(t, drv, "")
	require.NoError(t, c.CreateBuffer("a", 4, nil, ReadOnly))
	base := drv.Allocations()

	err := c.CreateBuffer("a", 8, nil, ReadOnly)
	assert.ErrorIs(t, err, ErrDuplicate)
	info, _ := c.Buffer("a")
	assert.Equal(t, 4, info.Size)

	drv.InjectFault("create_buffer", device.StatusMemObjectAllocationFailure)
	err = c.CreateBuffer("b", 8, nil, ReadOnly)
	assert.Equal(t, KindDevice, KindOf(err))
	assert.Equal(t, device.StatusMemObjectAllocationFailure, StatusOf(err))

	err = c.CreateBuffer("c", 0, nil, ReadOnly)
	assert.Equal(t, device.StatusInvalidBufferSize, StatusOf(err))

	assert.Len(t, c.Buffers(), 1)
	assert.Equal(t, base, drv.Allocations())
}

func TestBuildFailureCarriesLog(t *testing.T) {
	drv := host.Default()
	c, err := New(Options{
		Driver:       drv,
		Interop:      testInterop{},
		Logger:       quietLogger(),
		KernelName:   kernels.Passthrough,
		KernelSource: "__kernel void passthrough(global uchar4* in, global uchar4* out {\n}\n",
	})
	require.NoError(t, err)

	err = c.Init()
	require.Error(t, err)
	assert.Equal(t, KindBuild, KindOf(err))
	assert.ErrorIs(t, err, ErrBuild)
	assert.Equal(t, device.StatusBuildProgramFailure, StatusOf(err))
	assert.Contains(t, BuildLog(err), "expected ')'")
	assert.Empty(t, c.Kernels())

	require.NoError(t, c.Close())
	assert.Zero(t, drv.Live(host.ResContext))
}

func TestExecutionFailureKeepsPreviousFrame(t *testing.T) {
	drv := host.Default()
	c, input := passthroughFrame(t, drv)
	require.NoError(t, c.Validate())
	require.NoError(t, c.Compute())

	next := bytes.Repeat([]byte{0xAB}, len(input))
	require.NoError(t, c.WriteBuffer("input", 0, next))

	out := make([]byte, len(input))
	for _, op := range []string{"acquire", "dispatch", "release", "finish"} {
		drv.InjectFault(op, device.StatusOutOfResources)
		err := c.Compute()
		require.Error(t, err, op)
		assert.Equal(t, KindExecution, KindOf(err), op)
		assert.ErrorIs(t, err, ErrExecution, op)
		assert.Equal(t, device.StatusOutOfResources, StatusOf(err), op)

		require.NoError(t, c.ReadBuffer(BufImage, 0, out))
		assert.Equal(t, input, out, op)
	}

	require.NoError(t, c.Compute(), "the next frame recovers")
	require.NoError(t, c.ReadBuffer(BufImage, 0, out))
	assert.Equal(t, next, out)
	assert.Equal(t, uint64(2), c.Frames())
}

func TestReleaseFaultDoesNotWedgeCaster(t *testing.T) {
	drv := host.Default()
	c, _ := passthroughFrame(t, drv)
	require.NoError(t, c.Validate())
	require.NoError(t, c.Compute())

	drv.InjectFault("release", device.StatusOutOfResources)
	require.Error(t, c.Compute())
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Compute(), "frame %d", i)
	}
	assert.Equal(t, uint64(4), c.Frames())

	// Close hands back objects a failed release left acquired.
	drv.InjectFault("release", device.StatusOutOfResources)
	require.Error(t, c.Compute())
	require.NoError(t, c.Close())
	for r := host.ResContext; r <= host.ResKernel; r++ {
		assert.Zero(t, drv.Live(r), "resource %d", r)
	}
}

type voxelMap struct {
	x, y, z int
	v       []byte
}

func (m voxelMap) Dimensions() (int, int, int) { return m.x, m.y, m.z }
func (m voxelMap) Voxels() []byte              { return m.v }

func TestAssignFailureKeepsPreviousBinding(t *testing.T) {
	drv := host.Default()
	c := newCaster(t, drv, "")
	small := voxelMap{2, 2, 2, bytes.Repeat([]byte{1}, 8)}
	require.NoError(t, c.AssignMap(small))
	base := drv.Allocations()

	dims := func() []byte {
		out := make([]byte, 12)
		require.NoError(t, c.ReadBuffer(BufMapDimensions, 0, out))
		return out
	}

	// A larger map reallocates both buffers and the second allocation fails.
	drv.InjectFaultAfter("create_buffer", 1, device.StatusMemObjectAllocationFailure)
	err := c.AssignMap(voxelMap{4, 4, 4, make([]byte, 64)})
	assert.Equal(t, device.StatusMemObjectAllocationFailure, StatusOf(err))
	info, ok := c.Buffer(BufMap)
	require.True(t, ok)
	assert.Equal(t, 8, info.Size)
	assert.Equal(t, encodeInts(2, 2, 2), dims())
	assert.Equal(t, base, drv.Allocations())

	// Same-sized buffers are rewritten in place and the second write fails.
	drv.InjectFaultAfter("write", 1, device.StatusOutOfResources)
	err = c.AssignMap(voxelMap{2, 2, 2, bytes.Repeat([]byte{9}, 8)})
	assert.Equal(t, device.StatusOutOfResources, StatusOf(err))
	got := make([]byte, 8)
	require.NoError(t, c.ReadBuffer(BufMap, 0, got))
	assert.Equal(t, small.v, got)

	// The atlas surface is released again when its dimensions fail.
	drv.InjectFaultAfter("create_buffer", 1, device.StatusMemObjectAllocationFailure)
	atlas := &canvas{w: 4, h: 2, pix: make([]byte, 4*2*4)}
	err = c.CreateTextureAtlas(tileAtlas{atlas})
	assert.Equal(t, device.StatusMemObjectAllocationFailure, StatusOf(err))
	_, ok = c.Buffer(BufTextureAtlas)
	assert.False(t, ok)
	assert.Equal(t, base, drv.Allocations())

	require.NoError(t, c.AssignMap(voxelMap{4, 4, 4, make([]byte, 64)}))
	info, _ = c.Buffer(BufMap)
	assert.Equal(t, 64, info.Size)
	assert.Equal(t, encodeInts(4, 4, 4), dims())
}

func TestDispatchFailureLeavesSurfaceIntact(t *testing.T) {
	drv := host.Default()
	c, input := passthroughFrame(t, drv)
	require.NoError(t, c.Validate())
	require.NoError(t, c.Compute())
	require.NoError(t, c.WriteBuffer("input", 0, make([]byte, len(input))))

	drv.InjectFault("dispatch", device.StatusOutOfResources)
	require.Error(t, c.Compute())

	out := make([]byte, len(input))
	require.NoError(t, c.ReadBuffer(BufImage, 0, out))
	assert.Equal(t, input, out)
	require.NoError(t, c.Compute(), "shared objects were handed back")
}

func TestCloseReleasesEverything(t *testing.T) {
	drv := host.Default()
	c, _ := passthroughFrame(t, drv)
	require.NoError(t, c.Validate())
	require.NoError(t, c.Compute())

	require.NoError(t, c.Close())
	for r := host.ResContext; r <= host.ResKernel; r++ {
		assert.Zero(t, drv.Live(r), "resource %d", r)
	}
	require.NoError(t, c.Close())

	err := c.Compute()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestErrorUnwrapsToDeviceCause(t *testing.T) {
	drv := host.Default()
	c := newCaster(t, drv, "")
	drv.InjectFault("create_buffer", device.StatusOutOfHostMemory)
	err := c.CreateBuffer("x", 4, nil, ReadOnly)

	var se *device.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, device.StatusOutOfHostMemory, se.Status)
	assert.ErrorIs(t, err, ErrDevice)
	assert.Equal(t, CodeOpenCLError, err.(*Error).Code)
	assert.Equal(t, "OPENCL_ERROR", CodeOpenCLError.String())
}
