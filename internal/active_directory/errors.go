package active_directory

import (
	"fmt"
)

// GroupNotFoundError means no candidate search base contained the group.
type GroupNotFoundError struct {
	GroupName string
	Searched  []string
}

func (e *GroupNotFoundError) Error() string {
	return fmt.Sprintf("group %q not found in %d search base(s)", e.GroupName, len(e.Searched))
}

// GroupMembershipError is a failed membership add. Provisioning collects these instead of aborting.
type GroupMembershipError struct {
	GroupName string
	Cause     error
}

func (e *GroupMembershipError) Error() string {
	return fmt.Sprintf("failed to add member to group %q: %v", e.GroupName, e.Cause)
}

func (e *GroupMembershipError) Unwrap() error { return e.Cause }

// Provisioning stages that can fail fatally.
const (
	StageValidate  = "validate"
	StageExistence = "existence_check"
	StageCreate    = "create_entry"
)

// ProvisioningError is fatal for one account: nothing after Stage ran.
type ProvisioningError struct {
	Account string
	Stage   string
	Err     error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning %s failed at %s: %v", e.Account, e.Stage, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }
