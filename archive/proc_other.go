//go:build !unix

package archive

import "os/exec"

// SetProcessGroup is a no-op: cancellation kills only the converter itself.
func setProcessGroup(_ *exec.Cmd) {}
