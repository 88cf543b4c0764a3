package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pathsight/pathsight/pkg/types"
)

func TestPathsightError_Error(t *testing.T) {
	err := New(ErrCategoryStorage, CodeUploadFailed, "upload failed")
	expected := "[STORAGE:UPLOAD_FAILED] upload failed"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestPathsightError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryStorage, CodeUploadFailed, "upload failed", cause)
	expected := "[STORAGE:UPLOAD_FAILED] upload failed: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestPathsightError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryIngest, CodeMalformedRecord, "row 7", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestPathsightError_Is(t *testing.T) {
	err1 := New(ErrCategoryIngest, CodeMalformedRecord, "first")
	err2 := New(ErrCategoryIngest, CodeMalformedRecord, "second")
	err3 := New(ErrCategoryIngest, CodeEmptyInput, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryStorage, CodeUploadFailed, true},
		{ErrCategoryStorage, CodeDownloadFailed, true},
		{ErrCategoryStorage, CodeObjectNotFound, false},
		{ErrCategoryCatalog, CodeWriteConflict, true},
		{ErrCategoryCatalog, CodeRunNotFound, false},
		{ErrCategoryIngest, CodeMalformedRecord, false},
		{ErrCategoryIngest, CodeEmptyInput, false},
		{ErrCategoryValidation, CodeInvalidConfig, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategory(t *testing.T) {
	err := New(ErrCategoryIngest, CodeMalformedRecord, "bad row")
	if GetCategory(err) != ErrCategoryIngest {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryIngest)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-PathsightError should return empty category")
	}
}

func TestGetCode(t *testing.T) {
	err := New(ErrCategoryIngest, CodeMalformedRecord, "bad row")
	if GetCode(err) != CodeMalformedRecord {
		t.Errorf("got %q, want %q", GetCode(err), CodeMalformedRecord)
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-PathsightError should return empty code")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCategoryIngest, CodeMalformedRecord, "bad row")
	detailed := err.WithDetails(map[string]interface{}{"row": 42})

	if detailed.Details["row"] != 42 {
		t.Error("WithDetails should set details")
	}
	// Original should be unmodified
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	c := NewConfigError("min above max")
	if c.Category != ErrCategoryValidation || c.Code != CodeInvalidConfig {
		t.Error("NewConfigError mismatch")
	}

	m := NewMalformedRecordError("row 3", cause)
	if m.Category != ErrCategoryIngest || !errors.Is(m, cause) {
		t.Error("NewMalformedRecordError mismatch")
	}
	// Both the sentinel and the wrapped cause stay on the unwrap chain
	if !errors.Is(m, types.ErrMalformedRecord) {
		t.Error("NewMalformedRecordError should match types.ErrMalformedRecord")
	}

	e := NewEmptyInputError("no events")
	if e.Category != ErrCategoryIngest || e.Code != CodeEmptyInput {
		t.Error("NewEmptyInputError mismatch")
	}

	s := NewStorageError(CodeUploadFailed, "s3 down", cause)
	if s.Category != ErrCategoryStorage || !errors.Is(s, cause) {
		t.Error("NewStorageError mismatch")
	}

	k := NewCatalogError(CodeRunNotFound, "missing", nil)
	if k.Category != ErrCategoryCatalog || k.Code != CodeRunNotFound {
		t.Error("NewCatalogError mismatch")
	}

	i := NewInternalError("boom", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
