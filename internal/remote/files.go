package remote

import (
	"io"
	"os"
	"path"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"remote-finder/internal/models"
)

// FileClient is a live SFTP transport. Implementations must be safe for
// concurrent use.
type FileClient interface {
	ReadDir(p string) ([]os.FileInfo, error)
	Stat(p string) (os.FileInfo, error)
	MkdirAll(p string) error
	Rename(oldPath, newPath string) error
	Remove(p string) error
	RemoveAll(p string) error
	Chmod(p string, mode os.FileMode) error
	Open(p string) (io.ReadCloser, error)
	Create(p string) (io.WriteCloser, error)
	Close() error
	// Wait blocks until the underlying connection is gone.
	Wait() error
}

type sftpFiles struct {
	client *sftp.Client
	conn   *ssh.Client
}

func (f *sftpFiles) ReadDir(p string) ([]os.FileInfo, error) { return f.client.ReadDir(p) }
func (f *sftpFiles) Stat(p string) (os.FileInfo, error)      { return f.client.Stat(p) }
func (f *sftpFiles) MkdirAll(p string) error                 { return f.client.MkdirAll(p) }
func (f *sftpFiles) Rename(oldPath, newPath string) error    { return f.client.Rename(oldPath, newPath) }
func (f *sftpFiles) Remove(p string) error                   { return f.client.Remove(p) }
func (f *sftpFiles) Chmod(p string, mode os.FileMode) error  { return f.client.Chmod(p, mode) }

func (f *sftpFiles) Open(p string) (io.ReadCloser, error) {
	return f.client.Open(p)
}

func (f *sftpFiles) Create(p string) (io.WriteCloser, error) {
	return f.client.Create(p)
}

// RemoveAll deletes a directory tree depth first.
func (f *sftpFiles) RemoveAll(p string) error {
	entries, err := f.client.ReadDir(p)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		child := path.Join(p, entry.Name())
		if entry.IsDir() {
			if err := f.RemoveAll(child); err != nil {
				return err
			}
			continue
		}
		if err := f.client.Remove(child); err != nil {
			return err
		}
	}

	return f.client.RemoveDirectory(p)
}

func (f *sftpFiles) Close() error {
	return CloseAll(f.client, f.conn)
}

func (f *sftpFiles) Wait() error {
	return f.conn.Wait()
}

// EntryType maps a file mode to the listing type: "dir", "file", or the
// ls-style letter for every other kind.
func EntryType(mode os.FileMode) string {
	switch {
	case mode.IsDir():
		return models.EntryTypeDir
	case mode.IsRegular():
		return models.EntryTypeFile
	case mode&os.ModeSymlink != 0:
		return "l"
	case mode&os.ModeCharDevice != 0:
		return "c"
	case mode&os.ModeDevice != 0:
		return "b"
	case mode&os.ModeNamedPipe != 0:
		return "p"
	case mode&os.ModeSocket != 0:
		return "s"
	default:
		return "-"
	}
}

func RightsOf(mode os.FileMode) models.Rights {
	perm := mode.Perm()
	return models.Rights{
		User:  triplet(perm >> 6),
		Group: triplet(perm >> 3),
		Other: triplet(perm),
	}
}

func triplet(bits os.FileMode) string {
	out := []byte("---")
	if bits&4 != 0 {
		out[0] = 'r'
	}
	if bits&2 != 0 {
		out[1] = 'w'
	}
	if bits&1 != 0 {
		out[2] = 'x'
	}
	return string(out)
}

// EntryFromInfo builds a listing entry for a child of dir.
func EntryFromInfo(dir string, fi os.FileInfo) models.Entry {
	entry := models.Entry{
		Name:       fi.Name(),
		Type:       EntryType(fi.Mode()),
		Size:       fi.Size(),
		ModifyTime: fi.ModTime().UnixMilli(),
		Rights:     RightsOf(fi.Mode()),
		Path:       path.Join(dir, fi.Name()),
	}
	if st, ok := fi.Sys().(*sftp.FileStat); ok {
		entry.Owner = st.UID
		entry.Group = st.GID
	}
	return entry
}

func InfoFromStat(fi os.FileInfo) models.FileInfo {
	info := models.FileInfo{
		Mode:           posixMode(fi.Mode()),
		Size:           fi.Size(),
		AccessTime:     fi.ModTime().UnixMilli(),
		ModifyTime:     fi.ModTime().UnixMilli(),
		IsDirectory:    fi.IsDir(),
		IsFile:         fi.Mode().IsRegular(),
		IsSymbolicLink: fi.Mode()&os.ModeSymlink != 0,
	}
	if st, ok := fi.Sys().(*sftp.FileStat); ok {
		info.Mode = st.Mode
		info.UID = st.UID
		info.GID = st.GID
		info.AccessTime = int64(st.Atime) * 1000
		info.ModifyTime = int64(st.Mtime) * 1000
	}
	return info
}

// posixMode converts a Go file mode back to the st_mode layout.
func posixMode(mode os.FileMode) uint32 {
	const (
		sIFSOCK = 0o140000
		sIFLNK  = 0o120000
		sIFREG  = 0o100000
		sIFBLK  = 0o060000
		sIFDIR  = 0o040000
		sIFCHR  = 0o020000
		sIFIFO  = 0o010000
	)

	out := uint32(mode.Perm())
	switch {
	case mode.IsDir():
		out |= sIFDIR
	case mode&os.ModeSymlink != 0:
		out |= sIFLNK
	case mode&os.ModeCharDevice != 0:
		out |= sIFCHR
	case mode&os.ModeDevice != 0:
		out |= sIFBLK
	case mode&os.ModeNamedPipe != 0:
		out |= sIFIFO
	case mode&os.ModeSocket != 0:
		out |= sIFSOCK
	default:
		out |= sIFREG
	}
	if mode&os.ModeSetuid != 0 {
		out |= 0o4000
	}
	if mode&os.ModeSetgid != 0 {
		out |= 0o2000
	}
	if mode&os.ModeSticky != 0 {
		out |= 0o1000
	}
	return out
}
