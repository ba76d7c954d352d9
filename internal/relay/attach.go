package relay

import (
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/yanun0323/errors"

	"ctpbridge/internal/native"
	"ctpbridge/pkg/exception"
)

// AttachPolicy controls what happens to a callback thread's pin once the
// handler returns.
type AttachPolicy uint8

const (
	// AttachDetachOnReturn undoes the pin when the callback returns. Use it
	// for engine worker threads that also run unrelated native work.
	AttachDetachOnReturn AttachPolicy = iota
	// AttachStayAttached keeps a thread pinned for its lifetime after the
	// first callback. Later attaches on the same thread are no-ops.
	AttachStayAttached
)

func (p AttachPolicy) String() string {
	switch p {
	case AttachStayAttached:
		return "stay"
	default:
		return "detach"
	}
}

// ParseAttachPolicy accepts "detach" and "stay". Empty means detach.
func ParseAttachPolicy(s string) (AttachPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "detach":
		return AttachDetachOnReturn, nil
	case "stay":
		return AttachStayAttached, nil
	default:
		return 0, errors.Wrapf(exception.ErrInvalidArgument, "attach policy %q", s)
	}
}

// Scope is one attachment. Release restores the thread to the state it had
// before Attach; it is safe to call on the zero Scope.
type Scope struct {
	Thread  int
	release func()
}

func (s Scope) Release() {
	if s.release != nil {
		s.release()
	}
}

// Attacher makes the calling native thread usable for a handler invocation.
type Attacher interface {
	Attach() (Scope, error)
}

// Detacher is implemented by attachers that keep a thread attached across
// callbacks. Detach runs on the exiting thread and drops its attachment.
type Detacher interface {
	Detach()
}

// AttacherFunc adapts a function to Attacher.
type AttacherFunc func() (Scope, error)

func (f AttacherFunc) Attach() (Scope, error) {
	return f()
}

// ThreadAttacher pins the calling goroutine to its OS thread for the
// duration of an invocation.
type ThreadAttacher struct {
	policy AttachPolicy
	// limit caps the number of permanently pinned threads. Zero is unlimited.
	limit int64

	pinned   sync.Map // thread id -> struct{}
	attached atomic.Int64
}

// NewThreadAttacher creates an attacher. limit only applies to
// AttachStayAttached.
func NewThreadAttacher(policy AttachPolicy, limit int) *ThreadAttacher {
	return &ThreadAttacher{policy: policy, limit: int64(limit)}
}

func (a *ThreadAttacher) Policy() AttachPolicy {
	return a.policy
}

// Attached returns the number of live threads pinned by the stay policy.
func (a *ThreadAttacher) Attached() int {
	return int(a.attached.Load())
}

func (a *ThreadAttacher) Attach() (Scope, error) {
	tid := native.ThreadID()
	if a.policy != AttachStayAttached || tid == 0 {
		runtime.LockOSThread()
		return Scope{Thread: tid, release: runtime.UnlockOSThread}, nil
	}

	if _, ok := a.pinned.Load(tid); ok {
		return Scope{Thread: tid}, nil
	}

	if a.limit > 0 && a.attached.Add(1) > a.limit {
		a.attached.Add(-1)
		return Scope{}, errors.Wrapf(exception.ErrAttach, "thread %d, %d threads already pinned", tid, a.limit)
	} else if a.limit <= 0 {
		a.attached.Add(1)
	}

	// never unlocked: the goroutine stays on this thread until it exits
	runtime.LockOSThread()
	a.pinned.Store(tid, struct{}{})
	return Scope{Thread: tid}, nil
}

// Detach undoes the calling thread's stay pin and frees its slot. The engine
// calls it through Relay.OnThreadExit before a callback thread exits, so a
// reused thread id is pinned again and replaced threads fit under the limit.
func (a *ThreadAttacher) Detach() {
	if a.policy != AttachStayAttached {
		return
	}
	tid := native.ThreadID()
	if tid == 0 {
		return
	}
	if _, ok := a.pinned.LoadAndDelete(tid); !ok {
		return
	}
	a.attached.Add(-1)
	runtime.UnlockOSThread()
}
