package errors_test

import (
	"fmt"
	"testing"

	"github.com/jrsteele09/go-feishu-auth/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestProviderError(t *testing.T) {
	err := fmt.Errorf("feishu app access token: %w", &errors.ProviderError{Code: 10003, Msg: "invalid app_id"})

	require.EqualError(t, err, "feishu app access token: [code: 10003] invalid app_id")
	require.True(t, errors.Is(err, errors.ErrProviderAPI))

	var perr *errors.ProviderError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, 10003, perr.Code)
	require.Equal(t, "invalid app_id", perr.Msg)
}

func TestWrapf(t *testing.T) {
	require.NoError(t, errors.Wrapf(nil, "ignored %s", "context"))

	err := errors.Wrapf(errors.ErrInvalidState, "callback for %s", "feishu")
	require.EqualError(t, err, "callback for feishu: invalid state")
	require.True(t, errors.Is(err, errors.ErrInvalidState))
}
