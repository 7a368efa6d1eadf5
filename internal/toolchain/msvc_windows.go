//go:build windows

package toolchain

import "github.com/heaths/go-vssetup"

func init() {
	msvcFallback = findMSVC
}

// findMSVC locates cl.exe via the Visual Studio Setup COM API, used by
// findFirst as the last-resort fallback, for every compiler selector, when
// none of that selector's candidate binaries is found on PATH.
func findMSVC() string {
	insts, err := vssetup.Instances()
	if err != nil || len(insts) == 0 {
		return ""
	}
	path, err := insts[0].ResolvePath("VC\\Tools\\MSVC")
	if err != nil {
		return ""
	}
	return path
}
