package server

import (
	"errors"
	"testing"
	"time"

	"github.com/chazu/rtl/rtl"
)

func TestWorkerDo(t *testing.T) {
	w := NewWorker(rtl.New())
	defer w.Stop()

	v, err := w.Do(func(rt *rtl.Runtime) (any, error) {
		return rt.Classes.Len(), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.(int) != 1 {
		t.Errorf("classes = %v, want 1 (TObject)", v)
	}

	_, err = w.Do(func(*rtl.Runtime) (any, error) {
		panic("kaboom")
	})
	if err == nil || err.Error() != "kaboom" {
		t.Errorf("panic error = %v, want kaboom", err)
	}
}

func TestWorkerDoAfterStop(t *testing.T) {
	for i := 0; i < 50; i++ {
		w := NewWorker(rtl.New())
		w.Stop()

		done := make(chan error, 1)
		go func() {
			_, err := w.Do(func(*rtl.Runtime) (any, error) { return nil, nil })
			done <- err
		}()
		select {
		case err := <-done:
			if !errors.Is(err, ErrWorkerStopped) {
				t.Fatalf("Do after Stop = %v, want ErrWorkerStopped", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Do after Stop did not return")
		}
	}
}
