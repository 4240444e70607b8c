package check

import "os"

// CheckAuthFile reports whether the auth secrets file at path is missing,
// not a regular file, or empty. Any stat error counts as missing.
func CheckAuthFile(path string) Result {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return Fail("auth file missing/empty: " + path)
	}
	return Pass()
}
