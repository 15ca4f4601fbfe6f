package journal

import (
	"errors"
	"testing"
)

func TestCheckMissReturnsNotFound(t *testing.T) {
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer j.Close()

	_, _, found, err := j.Check("a/b.txt")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if found {
		t.Errorf("expected no sticky failure before RecordFailure")
	}
}

func TestRecordFailureThenCheck(t *testing.T) {
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer j.Close()

	cause := errors.New("upload timed out")
	if err := j.RecordFailure("a/b.txt", "cleanup_upload", cause); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	op, message, found, err := j.Check("a/b.txt")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !found {
		t.Fatalf("expected sticky failure to be found")
	}
	if op != "cleanup_upload" {
		t.Errorf("op = %q, want %q", op, "cleanup_upload")
	}
	if message != "upload timed out" {
		t.Errorf("message = %q, want %q", message, "upload timed out")
	}
}

func TestRecordFailureOverwritesPrior(t *testing.T) {
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer j.Close()

	j.RecordFailure("a/b.txt", "cleanup_upload", errors.New("first"))
	j.RecordFailure("a/b.txt", "cleanup_delete", errors.New("second"))

	op, message, found, err := j.Check("a/b.txt")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !found {
		t.Fatalf("expected sticky failure to be found")
	}
	if op != "cleanup_delete" || message != "second" {
		t.Errorf("got (%q, %q), want (%q, %q)", op, message, "cleanup_delete", "second")
	}
}

func TestResolveClearsFailure(t *testing.T) {
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer j.Close()

	j.RecordFailure("a/b.txt", "cleanup_upload", errors.New("boom"))
	if err := j.Resolve("a/b.txt"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	_, _, found, err := j.Check("a/b.txt")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if found {
		t.Errorf("expected sticky failure cleared after Resolve")
	}
}

func TestResolveUnknownKeyIsNotAnError(t *testing.T) {
	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer j.Close()

	if err := j.Resolve("never/recorded.txt"); err != nil {
		t.Errorf("Resolve on unknown key returned %v, want nil", err)
	}
}
