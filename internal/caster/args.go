package caster

import (
	"fmt"
	"strings"
)

// SetKernelArg binds the named buffer to argument index of the named
// kernel. Nothing changes when either name is unknown.
func (c *Caster) SetKernelArg(kernel string, index int, buffer string) error {
	const op = "set_kernel_arg"
	k, ok := c.kernels[kernel]
	if !ok {
		return registryError(ErrNotFound, op, kernel).withDetail("kernel")
	}
	b, ok := c.buffers[buffer]
	if !ok {
		return registryError(ErrNotFound, op, buffer).withDetail("buffer")
	}
	if index < 0 || index >= len(k.slots) {
		return registryError(ErrArgIndex, op, kernel).withDetail("index %d, kernel takes %d", index, len(k.slots))
	}
	if err := k.kernel.SetArg(index, b.mem); err != nil {
		return deviceError(op, kernel, err).withDetail("slot %d", index)
	}
	k.slots[index] = buffer
	c.invalidate()
	return nil
}

// BindLayout binds layout[i] to argument i of kernel, skipping empty names,
// and records the layout so a recompile can restore it. Every name is
// checked before any slot changes.
func (c *Caster) BindLayout(kernel string, layout []string) error {
	const op = "bind_layout"
	k, ok := c.kernels[kernel]
	if !ok {
		return registryError(ErrNotFound, op, kernel).withDetail("kernel")
	}
	if len(layout) > len(k.slots) {
		return registryError(ErrArgIndex, op, kernel).withDetail("layout names %d slots, kernel takes %d", len(layout), len(k.slots))
	}
	for _, name := range layout {
		if name == "" {
			continue
		}
		if _, ok := c.buffers[name]; !ok {
			return registryError(ErrNotFound, op, name).withDetail("buffer")
		}
	}
	for i, name := range layout {
		if name == "" {
			continue
		}
		if err := c.SetKernelArg(kernel, i, name); err != nil {
			return err
		}
	}
	c.layouts[kernel] = append([]string(nil), layout...)
	return nil
}

// Validate checks that every argument slot of every registered kernel is
// bound. Compute refuses to dispatch until Validate has succeeded for the
// current bindings.
func (c *Caster) Validate() error {
	var missing []string
	for _, name := range c.Kernels() {
		for i, buf := range c.kernels[name].slots {
			if buf == "" {
				missing = append(missing, fmt.Sprintf("%s[%d]", name, i))
			}
		}
	}
	if len(missing) > 0 {
		c.validated = false
		return validationError(ErrUnbound, "validate", "").withDetail("%s", strings.Join(missing, ", "))
	}
	c.validated = true
	c.validatedGen = c.generation
	c.log.Debug("kernel arguments validated", "generation", c.generation, "kernels", c.DescribeKernels())
	return nil
}

// Validated reports whether the current bindings passed Validate.
func (c *Caster) Validated() bool {
	return c.validated && c.validatedGen == c.generation
}

// DescribeKernels renders every kernel's argument slots and the buffers
// bound to them.
func (c *Caster) DescribeKernels() string {
	var sb strings.Builder
	for _, name := range c.Kernels() {
		k := c.kernels[name]
		fmt.Fprintf(&sb, "%s(", name)
		for i, buf := range k.slots {
			if i > 0 {
				sb.WriteString(", ")
			}
			b, ok := c.buffers[buf]
			switch {
			case buf == "":
				fmt.Fprintf(&sb, "%d: <unbound>", i)
			case !ok:
				fmt.Fprintf(&sb, "%d: %s <released>", i, buf)
			default:
				fmt.Fprintf(&sb, "%d: %s %dB %s %s", i, buf, b.Size, b.Access, b.Backing)
			}
		}
		sb.WriteString(")\n")
	}
	return sb.String()
}

// invalidate marks the current bindings as changed since the last Validate.
func (c *Caster) invalidate() {
	c.generation++
}

// unbindAll clears every slot bound to buffer and reports whether any was.
func (c *Caster) unbindAll(buffer string) bool {
	changed := false
	for _, k := range c.kernels {
		for i, name := range k.slots {
			if name == buffer {
				k.slots[i] = ""
				changed = true
			}
		}
	}
	return changed
}

// rebindAll points every slot bound to b.Name at b's memory. Slots the
// device refuses become unbound.
func (c *Caster) rebindAll(b *Buffer) bool {
	changed := false
	for _, k := range c.kernels {
		for i, name := range k.slots {
			if name != b.Name {
				continue
			}
			changed = true
			if err := k.kernel.SetArg(i, b.mem); err != nil {
				c.log.Error("rebinding replaced buffer failed", "kernel", k.Name, "slot", i, "buffer", b.Name, "err", err)
				k.slots[i] = ""
			}
		}
	}
	return changed
}
