package scan

import (
	"bytes"
	"io"
	"os"
)

// headSample reads up to maxBytes from the start of path and returns the
// complete lines inside the sample. A line cut off by the sample boundary
// is dropped.
func headSample(path string, maxBytes int) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, maxBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	buf = buf[:n]

	// lines cut off by the sample boundary or by a writer mid-append are
	// dropped by completeLines
	return completeLines(buf, false), nil
}

// tailSample reads up to maxBytes from the end of path. It returns the
// complete lines inside the sample plus the file's total size. A trailing
// line not yet terminated by a newline is still being written and is never
// returned.
func tailSample(path string, maxBytes int) (lines [][]byte, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	size = info.Size()

	off := size - int64(maxBytes)
	truncatedHead := off > 0
	if off < 0 {
		off = 0
	}
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return nil, size, err
	}

	buf, err := io.ReadAll(io.LimitReader(f, int64(maxBytes)))
	if err != nil {
		return nil, size, err
	}

	return completeLines(buf, truncatedHead), size, nil
}

// completeLines splits buf on newlines, dropping empty lines, the trailing
// unterminated segment, and, when dropFirst is set, the first segment
// (which starts mid-line).
func completeLines(buf []byte, dropFirst bool) [][]byte {
	segs := bytes.Split(buf, []byte{'\n'})
	if len(segs) == 0 {
		return nil
	}
	// the final split segment is either empty (buf ended with \n) or an
	// unterminated partial line; drop it either way
	segs = segs[:len(segs)-1]
	if dropFirst && len(segs) > 0 {
		segs = segs[1:]
	}
	var lines [][]byte
	for _, s := range segs {
		if len(bytes.TrimSpace(s)) > 0 {
			lines = append(lines, s)
		}
	}
	return lines
}
