package testutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/legaultmarc/fast-gzip/pkg/codec"
)

func TestEventually(t *testing.T) {
	t.Run("condition met immediately", func(t *testing.T) {
		called := false
		Eventually(t, func() bool {
			called = true
			return true
		}, 100*time.Millisecond, 10*time.Millisecond)

		if !called {
			t.Error("condition function should be called")
		}
	})

	t.Run("condition met after delay", func(t *testing.T) {
		var flag atomic.Bool
		go func() {
			time.Sleep(50 * time.Millisecond)
			flag.Store(true)
		}()

		Eventually(t, flag.Load, 200*time.Millisecond, 10*time.Millisecond)
	})
}

func TestWaitForInt64(t *testing.T) {
	var value atomic.Int64

	go func() {
		time.Sleep(30 * time.Millisecond)
		value.Store(100)
	}()

	WaitForInt64(t, &value, 100, 200*time.Millisecond)
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := WithTimeout(t)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("context should have a deadline")
	}
	if time.Until(deadline) > TestTimeout {
		t.Errorf("deadline is too far in the future")
	}
}

func TestAsserts(t *testing.T) {
	AssertNoError(t, nil)
	AssertError(t, context.Canceled)
	AssertEqual(t, 42, 42)
	AssertEqual(t, "hello", "hello")
	AssertNotEqual(t, 1, 2)
	AssertNotEqual(t, "a", "b")
}

func TestMockWriter(t *testing.T) {
	mw := NewMockWriter()
	mw.SetErrorOnNth(2)

	_, err := mw.Write([]byte("ok"))
	AssertNoError(t, err)

	_, err = mw.Write([]byte("fails"))
	if !errors.Is(err, ErrSimulated) {
		t.Fatalf("second write: got %v, want ErrSimulated", err)
	}

	AssertEqual(t, string(mw.Bytes()), "ok")
	AssertEqual(t, mw.WriteCount(), 2)
}

func TestFailingReader(t *testing.T) {
	r := &FailingReader{Data: []byte("abc"), Err: io.ErrUnexpectedEOF}

	got, err := io.ReadAll(r)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("got %v, want io.ErrUnexpectedEOF", err)
	}
	AssertEqual(t, string(got), "abc")
}

func TestFlakyReader(t *testing.T) {
	r := &FlakyReader{R: bytes.NewReader([]byte("abc")), Err: ErrSimulated, Every: 2}

	buf := make([]byte, 1)
	_, err := r.Read(buf)
	AssertNoError(t, err)
	_, err = r.Read(buf)
	AssertEqual(t, err, ErrSimulated)
	AssertEqual(t, r.Failed.Load(), int64(1))
}

func TestStallReader(t *testing.T) {
	r := NewStallReader([]byte("hi"))

	buf := make([]byte, 8)
	n, err := r.Read(buf)
	AssertNoError(t, err)
	AssertEqual(t, n, 2)

	done := make(chan error, 1)
	go func() {
		_, err := r.Read(buf)
		done <- err
	}()

	AssertEventually(t, func() bool { return r.Blocked.Load() == 1 })
	AssertNoError(t, r.Close())

	select {
	case err := <-done:
		AssertEqual(t, err, io.ErrClosedPipe)
	case <-time.After(TestTimeout):
		t.Fatal("stalled Read did not return")
	}
}

func TestCompressFixtures(t *testing.T) {
	data := Text(50)
	path := WriteCompressed(t, codec.FormatGzip, data)

	f, ok := codec.FromExtension(path)
	if !ok || f != codec.FormatGzip {
		t.Fatalf("fixture path %q lacks a gzip extension", path)
	}
	AssertEqual(t, len(SplitLines(data)), 50)
	AssertEqual(t, len(SplitLines([]byte("a\nb"))), 2)
	AssertEqual(t, len(SplitLines(nil)), 0)
}
