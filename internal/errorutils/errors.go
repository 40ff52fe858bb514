// Copyright 2026 johnnymeintel.
// Licensed under the AGPLv3, see LICENCE file for details.

package errorutils

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/juju/clock"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"
)

var logger = loggo.GetLogger("az104.errorutils")

const (
	retryDelay       = 5 * time.Second
	maxRetryDelay    = 1 * time.Minute
	maxRetryDuration = 5 * time.Minute
)

// StatusCode returns the HTTP status code of the Azure response error
// wrapped in err, or 0 if there is none.
func StatusCode(err error) int {
	var respErr *azcore.ResponseError
	if stderrors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

// ErrorCode returns the Azure error code of the response error wrapped
// in err, or the empty string if there is none.
func ErrorCode(err error) string {
	var respErr *azcore.ResponseError
	if stderrors.As(err, &respErr) {
		return respErr.ErrorCode
	}
	return ""
}

// HasErrorCode reports whether err carries any of the given Azure error codes.
func HasErrorCode(err error, codes ...string) bool {
	got := ErrorCode(err)
	if got == "" {
		return false
	}
	for _, code := range codes {
		if got == code {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err is an Azure 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsConflict reports whether err is an Azure 409.
func IsConflict(err error) bool {
	return StatusCode(err) == http.StatusConflict
}

// IsForbidden reports whether err is an Azure 403.
func IsForbidden(err error) bool {
	return StatusCode(err) == http.StatusForbidden
}

func isTooManyRequests(err error) bool {
	return StatusCode(err) == http.StatusTooManyRequests
}

// CallARM calls the supplied function, retrying with exponential backoff
// for as long as the request is rejected with http.StatusTooManyRequests.
// Any other error is fatal and returned as-is.
func CallARM(clk clock.Clock, f func() error) error {
	return retry.Call(retry.CallArgs{
		Func: f,
		IsFatalError: func(err error) bool {
			return !isTooManyRequests(err)
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("attempt %d: %v", attempt, err)
		},
		Attempts:    -1,
		Delay:       retryDelay,
		MaxDelay:    maxRetryDelay,
		MaxDuration: maxRetryDuration,
		BackoffFunc: retry.DoubleDelay,
		Clock:       clk,
	})
}
