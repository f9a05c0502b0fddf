package access

// ResetGateInit clears the process-wide verification source state between tests.
func ResetGateInit() {
	resetGateInit()
}
