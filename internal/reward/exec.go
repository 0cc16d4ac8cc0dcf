package reward

// ExecMeta captures the outcome of one external tool execution.
type ExecMeta struct {
	// ReturnCode is nil when the process never produced an exit status.
	ReturnCode *int
	Stderr     string
}

// IsExecError judges a tool run by exit status alone: a missing status or a
// non-zero code counts as an error.
func IsExecError(meta ExecMeta) bool {
	if meta.ReturnCode == nil {
		return true
	}
	return *meta.ReturnCode != 0
}
