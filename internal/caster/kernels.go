package caster

import (
	"os"
	"sort"

	"voxelcaster/internal/device"
)

// Kernel is a compiled entry point and its argument bindings.
type Kernel struct {
	Name string

	program device.Program
	kernel  device.Kernel
	// slots holds the bound buffer name per argument index, "" if unbound.
	slots  []string
	source string
	isPath bool
}

// CompileKernel builds source for the context device and registers the
// entry point called name. With isPath set, source names a file to read.
// Recompiling a registered name replaces it and drops its bindings; a
// failed build leaves the registered kernel untouched.
func (c *Caster) CompileKernel(source string, isPath bool, name string) error {
	const op = "compile_kernel"
	if err := c.ready(op); err != nil {
		return err
	}
	text := source
	if isPath {
		b, err := os.ReadFile(source)
		if err != nil {
			return newError(KindBuild, CodeErr, ErrBuild, op, name, err)
		}
		text = string(b)
	}

	program, err := c.ctx.BuildProgram(text)
	if err != nil {
		e := newError(KindBuild, CodeOpenCLError, ErrBuild, op, name, err)
		c.log.Error("kernel build failed", "kernel", name, "status", e.Status, "log", e.Log)
		return e
	}
	if log := program.BuildLog(); log != "" {
		c.log.Debug("kernel build log", "kernel", name, "log", log)
	}
	k, err := program.CreateKernel(name)
	if err != nil {
		if rerr := program.Release(); rerr != nil {
			c.log.Error("program release failed", "kernel", name, "err", rerr)
		}
		return newError(KindBuild, CodeOpenCLError, ErrBuild, op, name, err)
	}

	if old, ok := c.kernels[name]; ok {
		c.releaseKernel(old)
	}
	c.kernels[name] = &Kernel{
		Name:    name,
		program: program,
		kernel:  k,
		slots:   make([]string, k.NumArgs()),
		source:  source,
		isPath:  isPath,
	}
	c.invalidate()
	c.log.Info("kernel compiled", "kernel", name, "args", k.NumArgs(), "from_file", isPath)
	return nil
}

// Kernels lists the registered kernel names.
func (c *Caster) Kernels() []string {
	names := make([]string, 0, len(c.kernels))
	for name := range c.kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Caster) releaseKernel(k *Kernel) error {
	var first error
	if err := k.kernel.Release(); err != nil {
		c.log.Error("kernel release failed", "kernel", k.Name, "err", err)
		first = err
	}
	if err := k.program.Release(); err != nil {
		c.log.Error("program release failed", "kernel", k.Name, "err", err)
		if first == nil {
			first = err
		}
	}
	return first
}
