package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKindOf(t *testing.T) {
	err := E(KindNotProcessed, "no index for video")
	if KindOf(err) != KindNotProcessed {
		t.Errorf("KindOf=%s", KindOf(err))
	}
	if !IsKind(err, KindNotProcessed) {
		t.Error("IsKind should match")
	}
	if IsKind(err, KindTimeout) {
		t.Error("IsKind should not match a different kind")
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindEmbeddingProviderError, "embed batch failed", cause)
	if !errors.Is(err, cause) {
		t.Error("wrapped cause should be reachable via errors.Is")
	}
	// Kind survives another layer of fmt wrapping.
	outer := fmt.Errorf("build v1: %w", err)
	if KindOf(outer) != KindEmbeddingProviderError {
		t.Errorf("KindOf through wrap=%s", KindOf(outer))
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(KindInternal, "x", nil) != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(errors.New("boom")) != KindInternal {
		t.Error("plain errors default to Internal")
	}
}
