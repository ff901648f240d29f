package runner

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeConverter mimics x3f_extract: it writes "converted <ext>" next to the
// last argument, using the extension of the format switch.
const fakeConverter = `#!/bin/sh
ext=""
for a in "$@"; do
	case "$a" in
	-dng) ext=.dng ;;
	-tiff) ext=.tif ;;
	-jpg) ext=.jpg ;;
	-ppm) ext=.ppm ;;
	esac
	in="$a"
done
echo "READ THE X3F FILE $in"
printf 'converted %s\n' "$ext" > "$in$ext"
`

// writeStub writes an executable shell script into a temp dir.
func writeStub(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "x3f_extract")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

// writeInput creates a fake input image and returns its path.
func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("FOVb"), 0o644))
	return path
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
