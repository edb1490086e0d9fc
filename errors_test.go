package auth_test

import (
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"

	auth "github.com/goliatone/go-marketplace-auth"
)

func TestHasTextCode(t *testing.T) {
	assert.False(t, auth.HasTextCode(nil, auth.TextCodeNotFound))
	assert.False(t, auth.HasTextCode(fmt.Errorf("plain"), auth.TextCodeNotFound))
	assert.True(t, auth.HasTextCode(auth.ErrNotFound, auth.TextCodeNotFound))
	assert.False(t, auth.HasTextCode(auth.ErrNotFound, auth.TextCodeAlreadyExists))

	wrapped := goerrors.Wrap(auth.ErrOrphanedToken, goerrors.CategoryInternal, "resolution failed")
	assert.True(t, auth.HasTextCode(wrapped, auth.TextCodeOrphanedToken))

	stdWrapped := fmt.Errorf("outer: %w", auth.ErrInvalidCredentials)
	assert.True(t, auth.HasTextCode(stdWrapped, auth.TextCodeInvalidCredentials))
}

func TestTokenErrorPredicates(t *testing.T) {
	assert.True(t, auth.IsTokenExpiredError(auth.ErrTokenExpired))
	assert.True(t, auth.IsTokenExpiredError(fmt.Errorf("jwt: token is expired by 1h")))
	assert.False(t, auth.IsTokenExpiredError(auth.ErrTokenMalformed))
	assert.False(t, auth.IsTokenExpiredError(nil))

	assert.True(t, auth.IsMalformedError(auth.ErrTokenMalformed))
	assert.False(t, auth.IsMalformedError(auth.ErrTokenExpired))
	assert.False(t, auth.IsMalformedError(nil))
}

func TestSentinelCategories(t *testing.T) {
	cases := map[string]struct {
		err      *goerrors.Error
		category goerrors.Category
	}{
		"invalid credentials": {auth.ErrInvalidCredentials, goerrors.CategoryAuth},
		"not approved":        {auth.ErrNotApproved, goerrors.CategoryAuthz},
		"already exists":      {auth.ErrAlreadyExists, goerrors.CategoryConflict},
		"not found":           {auth.ErrNotFound, goerrors.CategoryNotFound},
		"concurrent update":   {auth.ErrConcurrentUpdate, goerrors.CategoryConflict},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.category, tc.err.Category)
		})
	}
}
