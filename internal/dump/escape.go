package dump

import (
	"encoding/hex"
	"strings"

	"github.com/dev-tams/sqlbackup/internal/database"
)

// Multibyte charsets in which 0x5C can be the trail byte of a character.
// Backslash escaping splits such characters, so literals for these charsets
// are written with quote doubling under NO_BACKSLASH_ESCAPES.
var backslashUnsafeCharsets = map[string]bool{
	"big5":    true,
	"cp932":   true,
	"gb18030": true,
	"gbk":     true,
	"sjis":    true,
}

// BackslashUnsafe reports whether charset can carry a 0x5C byte inside a
// multibyte character.
func BackslashUnsafe(charset string) bool {
	return backslashUnsafeCharsets[strings.ToLower(strings.TrimSpace(charset))]
}

// QuoteIdentifier backtick-quotes a table or column name.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// AppendValue appends v as a MySQL literal. NULL is unquoted, binary cells are
// hex literals so they restore byte-exact under any connection charset, and
// everything else is a single-quoted string.
func AppendValue(buf []byte, v database.Value, noBackslashEscapes bool) []byte {
	switch v.Kind {
	case database.KindNull:
		return append(buf, "NULL"...)
	case database.KindBinary:
		if len(v.Data) == 0 {
			return append(buf, "''"...)
		}
		buf = append(buf, "0x"...)
		return hex.AppendEncode(buf, v.Data)
	default:
		return AppendQuoted(buf, v.Data, noBackslashEscapes)
	}
}

// AppendQuoted appends s as a single-quoted string literal.
func AppendQuoted(buf, s []byte, noBackslashEscapes bool) []byte {
	buf = append(buf, '\'')
	if noBackslashEscapes {
		buf = escapeQuotes(buf, s)
	} else {
		buf = escapeBackslash(buf, s)
	}
	return append(buf, '\'')
}

// escapeBackslash follows mysql_real_escape_string.
func escapeBackslash(buf, s []byte) []byte {
	for _, c := range s {
		switch c {
		case '\x00':
			buf = append(buf, '\\', '0')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\x1a':
			buf = append(buf, '\\', 'Z')
		case '\'':
			buf = append(buf, '\\', '\'')
		case '"':
			buf = append(buf, '\\', '"')
		case '\\':
			buf = append(buf, '\\', '\\')
		default:
			buf = append(buf, c)
		}
	}
	return buf
}

// escapeQuotes is the only escaping valid under NO_BACKSLASH_ESCAPES.
func escapeQuotes(buf, s []byte) []byte {
	for _, c := range s {
		if c == '\'' {
			buf = append(buf, '\'', '\'')
			continue
		}
		buf = append(buf, c)
	}
	return buf
}
