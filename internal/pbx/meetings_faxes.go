package pbx

import (
	"context"
	"regexp"
	"time"

	"github.com/timeshareflow/pbxsync/internal/sftp"
)

// filenamePattern matches the PBX's meeting/fax export naming convention:
// YYYYMMDD_HHMMSS_{IN|OUT}_{remote-number}.{ext}. Installations that don't
// follow it simply yield a record with a zero Date and empty RemoteNumber;
// the file is still archived.
var filenamePattern = regexp.MustCompile(`(\d{8})_(\d{6})_(IN|OUT)_(\d+)`)

// ListMeetingsOrFaxes lists a candidate directory over SFTP and parses each
// filename for date, direction, and remote number, used when no dedicated
// database table exists for meetings or faxes.
func ListMeetingsOrFaxes(ctx context.Context, session *sftp.Session, candidateDirs []string) ([]MeetingOrFax, error) {
	var out []MeetingOrFax
	for _, dir := range candidateDirs {
		exists, err := session.Exists(dir)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}

		entries, err := session.ListRecursive(dir)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			out = append(out, parseMeetingOrFaxFilename(entry.Filename, entry.RelativePath, entry.AbsolutePath))
		}
		break // first existing candidate wins, per the prober's "highest priority source" rule
	}
	return out, nil
}

func parseMeetingOrFaxFilename(filename, relativePath, absolutePath string) MeetingOrFax {
	rec := MeetingOrFax{Filename: filename, RelativePath: relativePath, AbsolutePath: absolutePath}

	m := filenamePattern.FindStringSubmatch(filename)
	if m == nil {
		return rec
	}
	if ts, err := time.Parse("20060102150405", m[1]+m[2]); err == nil {
		rec.Date = ts
	}
	if m[3] == "IN" {
		rec.Direction = DirectionInbound
	} else {
		rec.Direction = DirectionOutbound
	}
	rec.RemoteNumber = m[4]
	return rec
}
