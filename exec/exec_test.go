// exec/exec_test.go
package exec

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"firmboot-go/boot"
	"firmboot-go/bundle"
	"firmboot-go/errcode"
	"firmboot-go/hook"
	"firmboot-go/report"
)

func task(name string, fn func(ctx context.Context) error) boot.Task {
	return boot.Task{Name: name, Fn: func(ctx context.Context, _ *bundle.Instance, _ hook.Values) error {
		return fn(ctx)
	}}
}

func TestTasksDoNotRunBeforeStart(t *testing.T) {
	r := NewRunner(4, nil)

	ran := make(chan string, 4)
	for _, name := range []string{"a", "b"} {
		n := name
		if _, err := r.Submit(task(n, func(context.Context) error {
			ran <- n
			return nil
		})); err != nil {
			t.Fatalf("submit %s: %v", n, err)
		}
	}

	select {
	case got := <-ran:
		t.Fatalf("task %q ran before Start", got)
	case <-time.After(20 * time.Millisecond):
	}

	r.Start(context.Background())
	r.Wait()
	if len(ran) != 2 {
		t.Errorf("ran %d tasks, want 2", len(ran))
	}
}

func TestLaunchOrderFollowsSubmission(t *testing.T) {
	r := NewRunner(8, nil)

	var mu sync.Mutex
	var starts []string
	gate := make(chan struct{})
	for _, name := range []string{"a", "b", "c"} {
		n := name
		_, err := r.Submit(task(n, func(context.Context) error {
			mu.Lock()
			starts = append(starts, n)
			mu.Unlock()
			<-gate
			return nil
		}))
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if got := r.Tasks(); len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("tasks = %v", got)
	}

	r.Start(context.Background())
	// goroutine interleaving is unordered once running; only the submission
	// order is guaranteed, which Tasks() above asserts
	close(gate)
	r.Wait()
	if len(starts) != 3 {
		t.Errorf("started %d, want 3", len(starts))
	}
}

func TestCapacityIsFixed(t *testing.T) {
	r := NewRunner(1, nil)
	if _, err := r.Submit(task("a", func(context.Context) error { return nil })); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err := r.Submit(task("b", func(context.Context) error { return nil }))
	if errcode.Of(err) != errcode.ExecutorFull {
		t.Errorf("err = %v, want executor_full", err)
	}
}

func TestSubmitAfterStartRunsImmediately(t *testing.T) {
	r := NewRunner(4, nil)
	r.Start(context.Background())

	ran := make(chan struct{})
	if _, err := r.Submit(task("late", func(context.Context) error {
		close(ran)
		return nil
	})); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("late task did not run")
	}
}

func TestErrorChannelCarriesFailures(t *testing.T) {
	r := NewRunner(4, nil)
	boom := errors.New("sensor dead")
	_, _ = r.Submit(task("bad", func(context.Context) error { return boom }))
	r.Start(context.Background())
	r.Wait()

	select {
	case e := <-r.Errors():
		if e.Name != "bad" || !errors.Is(e.Err, boom) {
			t.Errorf("error = %+v", e)
		}
	default:
		t.Fatal("no error delivered")
	}
}

func TestPanicsBecomeErrors(t *testing.T) {
	r := NewRunner(4, nil)
	_, _ = r.Submit(task("explode", func(context.Context) error { panic("kaboom") }))
	r.Start(context.Background())
	r.Wait()

	select {
	case e := <-r.Errors():
		if e.Name != "explode" {
			t.Errorf("error = %+v", e)
		}
	default:
		t.Fatal("panic not reported")
	}
}

func TestReportFeedsErrorChannel(t *testing.T) {
	hub := report.NewHub(4)
	r := NewRunner(4, hub)
	r.Report("setup", errors.New("init failed"))

	select {
	case e := <-r.Errors():
		if e.Name != "setup" {
			t.Errorf("error = %+v", e)
		}
	default:
		t.Fatal("reported failure not delivered")
	}
	if ev, ok := hub.Retained("task/setup/state"); !ok {
		t.Error("failure state not retained")
	} else if m := ev.Payload.(map[string]any); m["status"] != "failed" {
		t.Errorf("status = %v", m["status"])
	}
}

func TestHandleDone(t *testing.T) {
	r := NewRunner(4, nil)
	h, err := r.Submit(task("t", func(context.Context) error { return nil }))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	r.Start(context.Background())
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("handle never completed")
	}
}

func TestTaskStatePublished(t *testing.T) {
	hub := report.NewHub(4)
	r := NewRunner(4, hub)
	_, _ = r.Submit(task("t", func(context.Context) error { return nil }))

	if ev, ok := hub.Retained("task/t/state"); !ok {
		t.Fatal("submitted state not retained")
	} else if m := ev.Payload.(map[string]any); m["status"] != "submitted" {
		t.Errorf("status = %v", m["status"])
	}

	r.Start(context.Background())
	r.Wait()
	if ev, _ := hub.Retained("task/t/state"); ev.Payload.(map[string]any)["status"] != "done" {
		t.Errorf("final status = %v", ev.Payload)
	}
}
