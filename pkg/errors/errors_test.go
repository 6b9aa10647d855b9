package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeStateConflict, status: http.StatusConflict, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeNetwork, status: http.StatusBadGateway, publicMsg: "network unavailable", retryable: true},
		{code: CodeHTTP, status: http.StatusBadGateway, publicMsg: "upstream request failed"},
		{code: CodeStorage, status: http.StatusInternalServerError, publicMsg: "storage unavailable", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]string{"email": "is required"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeStorage, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeStorage {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestUpstreamStatus(t *testing.T) {
	err := New(CodeHTTP, "products request failed").WithUpstreamStatus(http.StatusNotFound)
	if err.UpstreamStatus() != http.StatusNotFound {
		t.Fatalf("expected upstream status 404, got %d", err.UpstreamStatus())
	}
	if got := err.Error(); got != "HTTP_ERROR: products request failed (status 404)" {
		t.Fatalf("unexpected error string %q", got)
	}
}

func TestRephraseKeepsCodeAndStatus(t *testing.T) {
	original := New(CodeHTTP, "search request failed").WithUpstreamStatus(http.StatusInternalServerError)
	rephrased := Rephrase(fmt.Errorf("catalog: %w", original), "search failed")

	if rephrased.Code() != CodeHTTP {
		t.Fatalf("expected code to survive, got %s", rephrased.Code())
	}
	if rephrased.Message() != "search failed" {
		t.Fatalf("unexpected message %q", rephrased.Message())
	}
	if rephrased.UpstreamStatus() != http.StatusInternalServerError {
		t.Fatalf("expected status to survive, got %d", rephrased.UpstreamStatus())
	}
	if !stdErrors.Is(rephrased, original) {
		t.Fatalf("expected original in chain")
	}

	untyped := Rephrase(stdErrors.New("disk on fire"), "failed to load product")
	if untyped.Code() != CodeInternal {
		t.Fatalf("expected internal code for untyped error, got %s", untyped.Code())
	}
	if Rephrase(nil, "x") != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestHasCode(t *testing.T) {
	inner := New(CodeNetwork, "dial tcp")
	outer := Wrap(CodeDependency, inner, "sync cart")
	if !HasCode(outer, CodeNetwork) {
		t.Fatalf("expected network code in chain")
	}
	if HasCode(outer, CodeStorage) {
		t.Fatalf("did not expect storage code in chain")
	}
	if HasCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeNotFound, "no such order")
	if got := As(err); got == nil || got.Code() != CodeNotFound {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}
