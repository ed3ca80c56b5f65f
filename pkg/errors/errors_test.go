package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"case not found", errors.CodeCaseNotFound, "case 42 not found"},
		{"invalid param", errors.CodeInvalidParam, "state must not be empty"},
		{"blocked", errors.CodeBlocked, "checklist incomplete"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)

			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
			assert.NotEmpty(t, ae.Stack)
		})
	}
}

func TestAppError_ErrorString(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.CodeInvalidTransition, "cannot move case")
	assert.Equal(t, "[CASE_001] cannot move case", ae.Error())

	withDetail := ae.WithDetail("SENT -> ACTIVE")
	assert.Equal(t, "[CASE_001] cannot move case: SENT -> ACTIVE", withDetail.Error())
	assert.Empty(t, ae.Detail, "WithDetail must not mutate the receiver")
}

func TestAppError_WithField(t *testing.T) {
	t.Parallel()

	base := errors.New(errors.CodeBlocked, "blocked")
	a := base.WithField("blockers", []string{"Review deductions"})
	b := a.WithField("status", "ACTIVE")

	assert.Nil(t, base.Fields)
	assert.Len(t, a.Fields, 1)
	assert.Len(t, b.Fields, 2)
	assert.Equal(t, []string{"Review deductions"}, b.Fields["blockers"])
}

func TestWrap_NilErrReturnsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.Wrap(nil, errors.CodeInternal, "should not matter"))
}

func TestWrap_CauseChainIsPreserved(t *testing.T) {
	t.Parallel()

	root := stderrors.New("connection refused")
	wrapped := errors.Wrap(root, errors.CodeDBQueryError, "failed to load case")

	require.NotNil(t, wrapped)
	assert.Equal(t, errors.CodeDBQueryError, wrapped.Code)
	assert.Equal(t, root, stderrors.Unwrap(wrapped))
	assert.True(t, stderrors.Is(wrapped, root))
}

func TestWrap_CodeUnknown(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeRuleSetNotFound, "no rules")
	outer := errors.Wrap(inner, errors.CodeUnknown, "resolving")
	assert.Equal(t, errors.ErrCodeRuleSetNotFound, outer.Code)

	plain := errors.Wrap(fmt.Errorf("boom"), errors.CodeUnknown, "resolving")
	assert.Equal(t, errors.CodeInternal, plain.Code)
}

func TestIsCode_WalksChain(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.CodeBlocked, "blocked")
	outer := errors.Wrap(inner, errors.CodeInternal, "transition failed")
	viaFmt := fmt.Errorf("handler: %w", outer)

	assert.True(t, errors.IsCode(viaFmt, errors.CodeBlocked))
	assert.True(t, errors.IsCode(viaFmt, errors.CodeInternal))
	assert.False(t, errors.IsCode(viaFmt, errors.CodeNotFound))
	assert.False(t, errors.IsCode(nil, errors.CodeBlocked))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", stderrors.New("x"), false},
		{"generic not found", errors.NotFound("x"), true},
		{"case not found", errors.New(errors.CodeCaseNotFound, "x"), true},
		{"jurisdiction not found", errors.New(errors.ErrCodeJurisdictionNotFound, "x"), true},
		{"wrapped", errors.Wrap(errors.New(errors.CodeCaseNotFound, "x"), errors.CodeInternal, "y"), true},
		{"conflict", errors.Conflict("x"), false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, errors.IsNotFound(tc.err))
		})
	}
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("x")))
	assert.Equal(t, errors.CodeRateLimit, errors.GetCode(errors.RateLimit("slow down")))
}

func TestFactories(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeInvalidParam, errors.InvalidParam("x").Code)
	assert.Equal(t, errors.CodeUnauthorized, errors.Unauthorized("x").Code)
	assert.Equal(t, errors.CodeForbidden, errors.Forbidden("x").Code)
	assert.Equal(t, errors.CodeInternal, errors.Internal("x").Code)
	assert.Equal(t, errors.CodeConflict, errors.Conflict("x").Code)
	assert.Equal(t, "case 7 missing", errors.Newf(errors.CodeCaseNotFound, "case %d missing", 7).Message)
}
