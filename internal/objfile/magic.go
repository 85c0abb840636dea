package objfile

import "os"

// readMagic reads just enough of the file to sniff its container format and
// reports the file's total size alongside it, so callers don't need a
// second stat.
func readMagic(path string) (magic []byte, size uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}

	buf := make([]byte, 4)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return nil, 0, err
	}
	return buf[:n], uint64(fi.Size()), nil
}
