package utils

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// UnknownErrorMessage is shown when the backend payload carries no usable detail.
const UnknownErrorMessage = "unknown error"

var ErrNoAccessToken = errors.New("response has no access_token")

// AccessToken extracts access_token from a credential exchange response.
func AccessToken(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", ErrNoAccessToken
	}
	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return "", ErrNoAccessToken
	}
	return token, nil
}

// ErrorDetail reads the human-readable message of an error payload.
// The backend answers {"detail": "..."}, or a list of {"msg": "..."} entries
// for request validation errors. It returns "" when neither is present.
func ErrorDetail(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}

	detail := gjson.GetBytes(body, "detail")
	switch {
	case detail.Type == gjson.String:
		return strings.TrimSpace(detail.String())
	case detail.IsArray():
		msgs := make([]string, 0, len(detail.Array()))
		for _, item := range detail.Array() {
			if msg := item.Get("msg").String(); msg != "" {
				msgs = append(msgs, msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
