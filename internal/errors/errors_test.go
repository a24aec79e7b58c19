package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code     string
		category Category
		severity Severity
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError},
		{ErrCodeDaemonLocked, CategoryConfig, SeverityFatal},
		{ErrCodeFileRead, CategoryIO, SeverityError},
		{ErrCodeCorruptIndex, CategoryIO, SeverityFatal},
		{ErrCodeIndexUnreachable, CategoryNetwork, SeverityWarning},
		{ErrCodeInvalidEntry, CategoryValidation, SeverityError},
		{ErrCodeIndexRejected, CategoryInternal, SeverityError},
		{"BAD", CategoryInternal, SeverityError},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			err := New(tc.code, "msg", nil)
			assert.Equal(t, tc.category, err.Category)
			assert.Equal(t, tc.severity, err.Severity)
		})
	}
}

func TestHookError_IsMatchesByCode(t *testing.T) {
	sentinel := New(ErrCodeIndexRejected, "", nil)
	err := fmt.Errorf("add entry: %w", New(ErrCodeIndexRejected, "bad document", nil))

	assert.True(t, stderrors.Is(err, sentinel))
	assert.False(t, stderrors.Is(err, New(ErrCodeIndexFailed, "", nil)))
}

func TestHookError_UnwrapExposesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NetworkError("post documents", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[ERR_302_INDEX_UNREACHABLE] post documents", err.Error())
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestGetCode_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", ValidationError("bad", nil))
	assert.Equal(t, ErrCodeInvalidInput, GetCode(err))
	assert.Equal(t, CategoryValidation, GetCategory(err))
	assert.Equal(t, "", GetCode(stderrors.New("plain")))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeCorruptIndex, "x", nil)))
	assert.False(t, IsFatal(New(ErrCodeFileRead, "x", nil)))
	assert.False(t, IsFatal(stderrors.New("plain")))
}

func TestFormatForCLI(t *testing.T) {
	err := ConfigError("unknown backend", nil).WithSuggestion("use meilisearch, bleve or sqlite")
	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: unknown backend")
	assert.Contains(t, out, "Hint: use meilisearch, bleve or sqlite")
	assert.Contains(t, out, "Code: ERR_102_CONFIG_INVALID")

	assert.NotContains(t, out, "Cause:")

	plain := FormatForCLI(stderrors.New("boom"))
	assert.Contains(t, plain, "Code: ERR_501_INTERNAL")
	assert.NotContains(t, plain, "Cause:", "wrapped message equals cause")

	caused := FormatForCLI(ConfigError("invalid configuration", stderrors.New("logging.level must be 'debug'")))
	assert.Contains(t, caused, "Cause: logging.level must be 'debug'")
	assert.Equal(t, "", FormatForCLI(nil))
}

func TestLogAttrs(t *testing.T) {
	err := New(ErrCodeIndexRejected, "invalid document id", stderrors.New("400")).
		WithDetail("meili_code", "invalid_document_id").
		WithDetail("index", "articles")

	attrs := LogAttrs(err)
	require.Len(t, attrs, 7)
	assert.Equal(t, "error_code", attrs[1].Key)
	assert.Equal(t, ErrCodeIndexRejected, attrs[1].Value.String())
	assert.Equal(t, "detail_index", attrs[5].Key)
	assert.Equal(t, "detail_meili_code", attrs[6].Key)

	plain := LogAttrs(stderrors.New("boom"))
	require.Len(t, plain, 1)
	assert.Equal(t, "error", plain[0].Key)

	assert.Nil(t, LogAttrs(nil))
}
