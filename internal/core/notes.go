package core

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Task notes are free text with a few recognised lines. All parsing and
// formatting of those lines lives in this file.
const (
	statusLinePrefix     = "Status:"
	documentMarkerPrefix = "Dokument-ID: "
)

var (
	statusTokenPattern = regexp.MustCompile(`Status:\s*(\p{L}+)`)
	documentIDPattern  = regexp.MustCompile(`Dokument-ID: (\d+)`)
)

// DocumentMarker returns the marker line that ties a task to a document.
func DocumentMarker(documentID int) string {
	return documentMarkerPrefix + strconv.Itoa(documentID)
}

// HasDocumentMarker reports whether notes carry the marker for documentID.
// The marker must not be followed by another digit, so the marker of
// document 4 does not match document 42. This is the same boundary
// ExtractDocumentID applies.
func HasDocumentMarker(notes string, documentID int) bool {
	marker := DocumentMarker(documentID)
	rest := notes
	for {
		i := strings.Index(rest, marker)
		if i < 0 {
			return false
		}
		after := rest[i+len(marker):]
		if after == "" || !isASCIIDigit(after[0]) {
			return true
		}
		rest = after
	}
}

// isASCIIDigit matches the \d class of documentIDPattern.
func isASCIIDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// ExtractDocumentID returns the first document id found in a marker. The
// id runs up to the first non-digit, whatever follows it.
func ExtractDocumentID(notes string) (int, bool) {
	m := documentIDPattern.FindStringSubmatch(notes)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ExtractStatusLabel returns the first word after "Status:", capitalised
// (first letter upper case, the rest lower case).
func ExtractStatusLabel(notes string) (string, bool) {
	m := statusTokenPattern.FindStringSubmatch(notes)
	if m == nil {
		return "", false
	}
	return capitalize(m[1]), true
}

// StatusLine formats a status line. An empty date omits the "(am ...)" part.
func StatusLine(label, date string) string {
	if date == "" {
		return statusLinePrefix + " " + label
	}
	return statusLinePrefix + " " + label + " (am " + date + ")"
}

// UpdateStatusLine replaces the first status line of notes with
// "Status: <label> (am <date>)", or prepends one when there is none. Other
// lines are left untouched.
func UpdateStatusLine(notes, label, date string) string {
	line := StatusLine(label, date)
	if notes == "" {
		return line
	}
	lines := strings.Split(notes, "\n")
	for i, l := range lines {
		if !strings.HasPrefix(l, statusLinePrefix) {
			continue
		}
		if strings.HasSuffix(l, "\r") {
			lines[i] = line + "\r"
		} else {
			lines[i] = line
		}
		return strings.Join(lines, "\n")
	}
	return line + "\n" + notes
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(word[size:])
}
