package host

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"voxelcaster/internal/device"
)

// Invocation runs one work-item.
type Invocation func(x, y int)

// Entry is the Go implementation of a kernel entry point. Prepare receives
// the bound argument memory in slot order and the dispatch domain, and
// returns the per work-item function.
type Entry struct {
	Arity   int
	Prepare func(args [][]byte, width, height int) (Invocation, error)
}

var (
	entriesMu sync.RWMutex
	entries   = make(map[string]Entry)
)

// RegisterEntry makes a kernel entry point available to programs built by
// the host driver.
func RegisterEntry(name string, e Entry) {
	entriesMu.Lock()
	defer entriesMu.Unlock()
	entries[name] = e
}

func lookupEntry(name string) (Entry, bool) {
	entriesMu.RLock()
	defer entriesMu.RUnlock()
	e, ok := entries[name]
	return e, ok
}

type signature struct {
	name   string
	params []string
	line   int
}

type diagnostic struct {
	line, col int
	severity  string
	msg       string
}

type buildLog []diagnostic

func (l *buildLog) errorf(line, col int, format string, args ...any) {
	*l = append(*l, diagnostic{line: line, col: col, severity: "error", msg: fmt.Sprintf(format, args...)})
}

func (l *buildLog) warnf(line, col int, format string, args ...any) {
	*l = append(*l, diagnostic{line: line, col: col, severity: "warning", msg: fmt.Sprintf(format, args...)})
}

func (l buildLog) failed() bool {
	for _, d := range l {
		if d.severity == "error" {
			return true
		}
	}
	return false
}

func (l buildLog) String() string {
	var sb strings.Builder
	errs := 0
	for _, d := range l {
		fmt.Fprintf(&sb, "<source>:%d:%d: %s: %s\n", d.line, d.col, d.severity, d.msg)
		if d.severity == "error" {
			errs++
		}
	}
	if errs > 0 {
		fmt.Fprintf(&sb, "%d error(s) generated.\n", errs)
	}
	return sb.String()
}

var kernelDecl = regexp.MustCompile(`(?:__kernel|\bkernel)\s+void\s+([A-Za-z_]\w*)\s*\(([^)]*)\)`)

// compile checks source the way a front end would for the parts the host
// driver relies on: balanced delimiters, #error directives, kernel
// signatures and their arity against registered entry points.
func compile(source string) (map[string]signature, buildLog) {
	var log buildLog
	text := stripComments(source)
	lines := lineIndex(text)

	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#error") {
			col := strings.Index(line, "#error") + 1
			log.errorf(i+1, col, "%s", strings.TrimSpace(strings.TrimPrefix(trimmed, "#error")))
		}
	}

	checkDelimiters(text, lines, &log)

	sigs := make(map[string]signature)
	for _, m := range kernelDecl.FindAllStringSubmatchIndex(text, -1) {
		name := text[m[2]:m[3]]
		line, col := position(lines, m[0])
		params := splitParams(text[m[4]:m[5]])
		if _, dup := sigs[name]; dup {
			log.errorf(line, col, "redefinition of '%s'", name)
			continue
		}
		sigs[name] = signature{name: name, params: params, line: line}
		if e, ok := lookupEntry(name); ok && e.Arity != len(params) {
			log.errorf(line, col, "kernel '%s' declares %d parameters but the host implementation takes %d", name, len(params), e.Arity)
		}
	}
	if len(sigs) == 0 && !log.failed() {
		log.warnf(1, 1, "program declares no kernels")
	}
	return sigs, log
}

func splitParams(list string) []string {
	list = strings.TrimSpace(list)
	if list == "" || list == "void" {
		return nil
	}
	parts := strings.Split(list, ",")
	for i, p := range parts {
		parts[i] = strings.Join(strings.Fields(p), " ")
	}
	return parts
}

func checkDelimiters(text string, lines []int, log *buildLog) {
	type open struct {
		ch  byte
		pos int
	}
	pairs := map[byte]byte{')': '(', '}': '{', ']': '['}
	var stack []open
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch ch {
		case '(', '{', '[':
			stack = append(stack, open{ch, i})
		case ')', '}', ']':
			if len(stack) == 0 || stack[len(stack)-1].ch != pairs[ch] {
				line, col := position(lines, i)
				log.errorf(line, col, "extraneous closing '%c'", ch)
				continue
			}
			stack = stack[:len(stack)-1]
		}
	}
	closers := map[byte]byte{'(': ')', '{': '}', '[': ']'}
	for _, o := range stack {
		line, col := position(lines, o.pos)
		log.errorf(line, col, "expected '%c' to match this '%c'", closers[o.ch], o.ch)
	}
}

// stripComments blanks comments and string literals, keeping newlines so
// positions stay valid.
func stripComments(src string) string {
	out := []byte(src)
	for i := 0; i < len(out); i++ {
		switch {
		case out[i] == '/' && i+1 < len(out) && out[i+1] == '/':
			for i < len(out) && out[i] != '\n' {
				out[i] = ' '
				i++
			}
		case out[i] == '/' && i+1 < len(out) && out[i+1] == '*':
			for i < len(out) && !(out[i] == '*' && i+1 < len(out) && out[i+1] == '/') {
				if out[i] != '\n' {
					out[i] = ' '
				}
				i++
			}
			if i+1 < len(out) {
				out[i], out[i+1] = ' ', ' '
				i++
			}
		case out[i] == '"':
			i++
			for i < len(out) && out[i] != '"' && out[i] != '\n' {
				out[i] = ' '
				i++
			}
		}
	}
	return string(out)
}

func lineIndex(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func position(starts []int, offset int) (int, int) {
	line := 0
	for line+1 < len(starts) && starts[line+1] <= offset {
		line++
	}
	return line + 1, offset - starts[line] + 1
}

type program struct {
	ctx      *hostContext
	entries  map[string]signature
	log      string
	kernels  int
	released bool
}

func (p *program) BuildLog() string { return p.log }

func (p *program) CreateKernel(name string) (device.Kernel, error) {
	const op = "clCreateKernel"
	if p.released {
		return nil, device.Errorf(op, device.StatusInvalidProgram, "program released")
	}
	sig, ok := p.entries[name]
	if !ok {
		return nil, device.Errorf(op, device.StatusInvalidKernelName, "no kernel named %q in program", name)
	}
	entry, ok := lookupEntry(name)
	if !ok {
		return nil, device.Errorf(op, device.StatusInvalidKernel, "kernel %q has no host implementation", name)
	}
	p.kernels++
	p.ctx.adopt(ResKernel)
	return &kernel{prog: p, sig: sig, entry: entry, args: make([]*memory, len(sig.params))}, nil
}

func (p *program) Release() error {
	if p.released {
		return device.Errorf("clReleaseProgram", device.StatusInvalidProgram, "already released")
	}
	if p.kernels > 0 {
		return device.Errorf("clReleaseProgram", device.StatusInvalidOperation, "%d kernels still alive", p.kernels)
	}
	p.released = true
	p.ctx.orphan(ResProgram)
	return nil
}

type kernel struct {
	prog     *program
	sig      signature
	entry    Entry
	args     []*memory
	released bool
}

func (k *kernel) Name() string { return k.sig.name }
func (k *kernel) NumArgs() int { return len(k.sig.params) }

func (k *kernel) SetArg(index int, m device.Memory) error {
	const op = "clSetKernelArg"
	if k.released {
		return device.Errorf(op, device.StatusInvalidKernel, "kernel released")
	}
	if index < 0 || index >= len(k.args) {
		return device.Errorf(op, device.StatusInvalidArgIndex, "index %d, kernel %s takes %d", index, k.sig.name, len(k.args))
	}
	mem, err := asMemory(op, k.prog.ctx, m)
	if err != nil {
		return err
	}
	k.args[index] = mem
	return nil
}

func (k *kernel) Release() error {
	if k.released {
		return device.Errorf("clReleaseKernel", device.StatusInvalidKernel, "already released")
	}
	k.released = true
	k.args = nil
	k.prog.kernels--
	k.prog.ctx.orphan(ResKernel)
	return nil
}
