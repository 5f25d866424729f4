package remotecmd

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	require.Equal(t, "'plain'", Quote("plain"))
	require.Equal(t, "'with space'", Quote("with space"))
	require.Equal(t, `'it'\''s'`, Quote("it's"))
	require.Equal(t, "'$(rm -rf /)'", Quote("$(rm -rf /)"))
}

func TestExec(t *testing.T) {
	require.Equal(t, "cd / && ls", Exec("", "ls"))
	require.Equal(t, "cd ~/projects && make test", Exec("~/projects", "make test"))
	require.Equal(t, "cd $HOME && ls | wc -l", Exec("$HOME", "ls | wc -l"))
}

func TestInDir(t *testing.T) {
	require.Equal(t, "cd '/' && ls", InDir("", "ls"))
	require.Equal(t, "cd '/home/a b' && ls", InDir("/home/a b", "ls"))
}

func TestDiskUsage(t *testing.T) {
	require.Equal(t, "du -sh '/var/log'/* 2>/dev/null | sort -hr | head -20", DiskUsage("/var/log/"))
	require.Equal(t, "du -sh ''/* 2>/dev/null | sort -hr | head -20", DiskUsage("/"))
}

func TestDuplicates(t *testing.T) {
	require.Equal(t,
		"find '/srv' -type f -exec md5sum {} + 2>/dev/null | sort | uniq -w32 -D --all-repeated=separate | head -50",
		Duplicates("/srv"))
}

func TestCompress(t *testing.T) {
	cmd, err := Compress("/home/alice", "backup.tar.gz", []string{"/home/alice/docs", "notes.txt", "-rf"})
	require.NoError(t, err)
	require.Equal(t, "cd '/home/alice' && tar -czf 'backup.tar.gz' -- 'docs' 'notes.txt' '-rf'", cmd)

	_, err = Compress("/", "a.tar.gz", nil)
	require.ErrorIs(t, err, ErrNoItems)

	_, err = Compress("/", " ", []string{"x"})
	require.Error(t, err)
}

func TestExtract(t *testing.T) {
	tests := []struct {
		archive string
		want    string
	}{
		{"a.tar.gz", "cd '/d' && tar -xzf 'a.tar.gz'"},
		{"a.TGZ", "cd '/d' && tar -xzf 'a.TGZ'"},
		{"a.tar.bz2", "cd '/d' && tar -xjf 'a.tar.bz2'"},
		{"/d/a.tar", "cd '/d' && tar -xf 'a.tar'"},
		{"a.zip", "cd '/d' && unzip -o 'a.zip'"},
	}
	for _, tt := range tests {
		got, err := Extract("/d", tt.archive)
		require.NoError(t, err, tt.archive)
		require.Equal(t, tt.want, got)
	}

	_, err := Extract("/d", "a.rar")
	require.ErrorIs(t, err, ErrUnsupportedArchive)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("755")
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), mode)

	mode, err = ParseMode("4750")
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o750)|os.ModeSetuid, mode)

	for _, bad := range []string{"", "9", "rwx", "17777", "-1"} {
		_, err := ParseMode(bad)
		require.ErrorIs(t, err, ErrInvalidMode, bad)
	}
}

func TestParseDiskUsage(t *testing.T) {
	out := "1.2G\t/var/log/journal\n56K\t/var/log/my dir\n\n"
	entries := ParseDiskUsage(out)
	require.Equal(t, []DiskUsageEntry{
		{Size: "1.2G", Path: "/var/log/journal"},
		{Size: "56K", Path: "/var/log/my dir"},
	}, entries)

	require.Empty(t, ParseDiskUsage(""))
}

func TestParseDuplicates(t *testing.T) {
	const a = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	const b = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	out := a + "  /x/one\n" + a + "  /y/one copy\n\n" + b + "  /x/two\n" + b + "  /y/two\n\n" + a + "  /truncated\n"

	groups := ParseDuplicates(out)
	require.Equal(t, []DuplicateGroup{
		{Hash: a, Paths: []string{"/x/one", "/y/one copy"}},
		{Hash: b, Paths: []string{"/x/two", "/y/two"}},
	}, groups)

	require.Empty(t, ParseDuplicates(""))
}
