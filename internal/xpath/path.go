package xpath

import (
	"path"
	"strings"
	"unicode"

	"github.com/gofrs/uuid"
)

// ArchiveExt is the extension of exported bank archives.
const ArchiveExt = ".bank"

// ArchiveName returns the file name of an exported bank.
// When bankID is set, it is appended so imports can find the bank key from the name.
func ArchiveName(name, bankID string) string {
	base := sanitize(name)
	if base == "" {
		base = "bank"
	}
	if bankID != "" {
		base += "_" + bankID
	}
	return base + ArchiveExt
}

// BankHint extracts the bank identifier embedded by ArchiveName in filename.
func BankHint(filename string) (string, bool) {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	base = strings.TrimSuffix(base, path.Ext(base))

	i := strings.LastIndex(base, "_")
	if i < 0 {
		return "", false
	}
	id, err := uuid.FromString(base[i+1:])
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '.':
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '_':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), ".-")
}
