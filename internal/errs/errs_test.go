package errs

import (
	"errors"
	"testing"
)

func TestEAndIs(t *testing.T) {
	err := E(Op("query.Plan"), KindValidation, "limit out of range")
	if !Is(err, KindValidation) {
		t.Fatalf("expected KindValidation, got %s", KindOf(err))
	}
	if err.Error() != "query.Plan: [Validation] limit out of range" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestWrapPreservesKind(t *testing.T) {
	base := E(KindNotFound, "dataset missing")
	wrapped := Wrap(Op("cache.Open"), base)
	if !Is(wrapped, KindNotFound) {
		t.Fatalf("expected wrapped error to keep KindNotFound, got %s", KindOf(wrapped))
	}
	if !errors.Is(wrapped, wrapped) {
		t.Fatalf("expected errors.Is self-match")
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if Wrap(Op("x"), nil) != nil {
		t.Fatalf("expected Wrap(nil) to return nil")
	}
}

func TestWrapUnkindedBecomesInternal(t *testing.T) {
	plain := errors.New("boom")
	wrapped := Wrap(Op("x"), plain)
	if !Is(wrapped, KindInternal) {
		t.Fatalf("expected KindInternal for un-kinded error, got %s", KindOf(wrapped))
	}
}
