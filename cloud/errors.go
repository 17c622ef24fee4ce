package cloud

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	formreport "github.com/porticus-lab/go-form-report"
)

var quotaReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
	"dailyLimitExceeded":    true,
}

// classify maps an API call error to an upload failure class.
func classify(err error) formreport.UploadFailure {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return formreport.FailureAuth
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return formreport.FailureNetwork
	}
	switch gerr.Code {
	case http.StatusUnauthorized:
		return formreport.FailureAuth
	case http.StatusTooManyRequests:
		return formreport.FailureQuota
	case http.StatusForbidden:
		for _, item := range gerr.Errors {
			if quotaReasons[item.Reason] {
				return formreport.FailureQuota
			}
		}
		if strings.Contains(strings.ToLower(gerr.Message), "quota") {
			return formreport.FailureQuota
		}
		return formreport.FailureAuth
	}
	return formreport.FailureRejected
}

func uploadError(target formreport.ExportTarget, err error) *formreport.UploadError {
	return &formreport.UploadError{Target: target.String(), Failure: classify(err), Err: err}
}

func authError(target formreport.ExportTarget, err error) *formreport.UploadError {
	return &formreport.UploadError{Target: target.String(), Failure: formreport.FailureAuth, Err: err}
}
