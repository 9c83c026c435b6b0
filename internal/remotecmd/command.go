// Package remotecmd builds the shell command lines executed on the
// destination host. Every argument is quoted individually so embedded
// spaces or shell metacharacters in paths and URLs cannot break the
// command apart or inject anything.
package remotecmd

import (
	"fmt"
	"strings"

	"github.com/viaa/transfer-service/internal/ranges"
)

// curlStatsFormat makes curl print a single machine-parseable line on
// success: status code, elapsed time, bytes transferred and throughput,
// comma-joined.
const curlStatsFormat = "%{http_code},time: %{time_total}s,size: %{size_download} bytes,speed: %{speed_download}b/s"

// Fetch describes a single ranged download executed on the remote host.
type Fetch struct {
	// Destination is the full remote path the part is written to.
	Destination string
	// SourceURL is where the file is fetched from.
	SourceURL string
	// HostHeader is sent as the "host" header, needed when the source
	// sits behind an S3 domain that differs from the URL host.
	HostHeader string
	// Range is the byte range in "{start}-{end}" format. Empty means
	// fetch the whole file.
	Range string
	// Username and Password are optional source credentials, passed to
	// curl as inline basic auth. Both must be set to take effect.
	Username string
	Password string
}

// Command renders the curl invocation. The "-S -s" pair hides the
// progress bar but keeps errors on stderr, which the caller inspects to
// decide whether the fetch succeeded.
func (f Fetch) Command() string {
	args := []string{
		"curl",
		"-w", curlStatsFormat,
		"-L",
		"-H", "host: " + f.HostHeader,
	}
	if f.Range != "" {
		args = append(args,
			"-H", "range: bytes="+f.Range,
			"-r", f.Range,
		)
	}
	args = append(args, "-S", "-s", "-o", f.Destination)
	if f.Username != "" && f.Password != "" {
		args = append(args, "-u", f.Username+":"+f.Password)
	}
	args = append(args, f.SourceURL)
	return Join(args)
}

// Assemble renders the command concatenating all parts, in index order,
// into "{fileName}.tmp" inside the staging directory.
func Assemble(stagingDir, fileName string, parts int) string {
	args := []string{"cd", stagingDir, "&&", "cat"}
	for i := 0; i < parts; i++ {
		args = append(args, ranges.PartFileName(fileName, i, ""))
	}
	args = append(args, ">", fileName+".tmp")
	joined := Join(args)
	// The chain and redirect operators must stay unquoted.
	joined = strings.ReplaceAll(joined, "'&&'", "&&")
	joined = strings.ReplaceAll(joined, "'>'", ">")
	return joined
}

// DiskUsage renders the query for the used percentage of the
// filesystem holding dir. Output example: " 12%".
func DiskUsage(dir string) string {
	return fmt.Sprintf("df --output=pcent %s | tail -1", Quote(dir))
}

// Touch renders an explicit touch of path over the shell. The SFTP
// utime primitive is unreliable against the destination filesystem.
func Touch(path string) string {
	return "touch " + Quote(path)
}

// Join quotes every argument and joins them with single spaces.
func Join(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = Quote(arg)
	}
	return strings.Join(quoted, " ")
}

// Quote returns s quoted for a POSIX shell. Strings consisting only of
// safe characters are returned as-is; everything else is wrapped in
// single quotes with embedded single quotes escaped.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if !needsQuoting(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func needsQuoting(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("_@%+=:,./-", r):
		default:
			return true
		}
	}
	return false
}
