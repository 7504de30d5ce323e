package resource

import (
	"encoding/json"

	"github.com/campusdesk/campus/internal/output"
)

// ParamsKey serializes params for equality checks. Map keys are sorted by
// encoding/json, so equal maps always produce equal keys.
func ParamsKey(params any) (string, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return "", output.ErrUsage("cannot serialize request params: " + err.Error())
	}
	return string(b), nil
}
