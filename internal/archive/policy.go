package archive

import (
	"errors"
	"fmt"
	"strings"
)

// FailurePolicy decides what happens to the update loop after an archive write
// fails. Every policy still reports the failure to the caller.
type FailurePolicy string

const (
	// PolicyHalt stops processing further updates.
	PolicyHalt FailurePolicy = "halt"
	// PolicyContinue logs the failure and keeps archiving.
	PolicyContinue FailurePolicy = "continue"
	// PolicyDisableScope stops archiving the failing chat and keeps serving search.
	PolicyDisableScope FailurePolicy = "disable_scope"
)

// ErrHalted marks an archive failure that must stop the update loop.
var ErrHalted = errors.New("archiving halted")

// ParseFailurePolicy accepts the config spelling of a policy. Empty means halt.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyHalt, nil
	case PolicyHalt, PolicyContinue, PolicyDisableScope:
		return p, nil
	default:
		return "", fmt.Errorf("unknown archive failure policy %q (want halt, continue or disable_scope)", s)
	}
}
