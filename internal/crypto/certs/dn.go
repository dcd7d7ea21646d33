// Package certs reads the distinguished names certificate plugins report.
package certs

import (
	"encoding/asn1"
	"encoding/hex"
	"strings"
)

// Attribute is one type=value pair of a distinguished name.
type Attribute struct {
	Type  string
	Value string
}

// ParseDN splits a distinguished name string as plugins report it. RDNs may
// be separated by ',' or ';', multi-valued RDNs by '+'. Values may be quoted
// or carry backslash escapes. Malformed pairs without '=' are skipped.
func ParseDN(dn string) []Attribute {
	var (
		attrs   []Attribute
		cur     strings.Builder
		typ     string
		inType  = true
		quoted  bool
		escaped bool
		// hexForm is set when the value starts with an unescaped '#'.
		hexForm bool
	)

	// value appends r to the current value. literal runes came from an
	// escape or a quoted string.
	value := func(r rune, literal bool) {
		if !inType && strings.TrimSpace(cur.String()) == "" && r != ' ' {
			hexForm = r == '#' && !literal
		}
		cur.WriteRune(r)
	}

	flush := func() {
		if inType {
			cur.Reset()
			return
		}
		t := strings.TrimSpace(typ)
		if t != "" {
			v := strings.TrimSpace(cur.String())
			if hexForm {
				v = decodeValue(v)
			}
			attrs = append(attrs, Attribute{Type: t, Value: v})
		}
		cur.Reset()
		typ = ""
		inType = true
		hexForm = false
	}

	for _, r := range dn {
		switch {
		case escaped:
			value(r, true)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"' && !inType:
			quoted = !quoted
		case quoted:
			value(r, true)
		case r == '=' && inType:
			typ = cur.String()
			cur.Reset()
			inType = false
		case r == ',' || r == ';' || r == '+':
			flush()
		default:
			value(r, false)
		}
	}
	flush()

	return attrs
}

// decodeValue turns the "#<hex DER>" form used for unknown attribute types
// back into text. Anything that does not decode is returned as is.
func decodeValue(v string) string {
	if !strings.HasPrefix(v, "#") {
		return v
	}
	der, err := hex.DecodeString(v[1:])
	if err != nil {
		return v
	}
	var raw asn1.RawValue
	if rest, err := asn1.Unmarshal(der, &raw); err != nil || len(rest) > 0 {
		return v
	}
	switch raw.Tag {
	case asn1.TagUTF8String, asn1.TagPrintableString, asn1.TagIA5String, asn1.TagNumericString, asn1.TagT61String:
		return string(raw.Bytes)
	}
	return v
}

// Value returns the first value of the attribute type in dn, matching the type
// case-insensitively and accepting OID spellings of known types.
func Value(dn, attrType string) string {
	want := canonicalType(attrType)
	for _, a := range ParseDN(dn) {
		if canonicalType(a.Type) == want {
			return a.Value
		}
	}
	return ""
}

// CommonName returns the CN of a subject distinguished name, or "" when the
// name has none.
func CommonName(dn string) string {
	return Value(dn, "CN")
}

// canonicalType maps OID spellings of known attribute types to their short
// names and upper-cases the rest.
func canonicalType(t string) string {
	t = strings.TrimSpace(t)
	upper := strings.ToUpper(t)
	oid := strings.TrimPrefix(upper, "OID.")
	if name, ok := oidNames[oid]; ok {
		return name
	}
	if name, ok := aliases[upper]; ok {
		return name
	}
	return upper
}

var oidNames = map[string]string{
	"2.5.4.3":              "CN",
	"2.5.4.4":              "SN",
	"2.5.4.5":              "SERIALNUMBER",
	"2.5.4.6":              "C",
	"2.5.4.7":              "L",
	"2.5.4.8":              "S",
	"2.5.4.9":              "STREET",
	"2.5.4.10":             "O",
	"2.5.4.11":             "OU",
	"2.5.4.12":             "T",
	"2.5.4.42":             "G",
	"2.5.4.97":             "ORGANIZATIONIDENTIFIER",
	"1.2.840.113549.1.9.1": "E",
	"1.2.840.113549.1.9.2": "UNSTRUCTUREDNAME",
	"1.2.643.3.131.1.1":    "INN",
	"1.2.643.100.1":        "OGRN",
	"1.2.643.100.3":        "SNILS",
	"1.2.643.100.4":        "INNLE",
	"1.2.643.100.5":        "OGRNIP",
}

var aliases = map[string]string{
	"ST":           "S",
	"GN":           "G",
	"GIVENNAME":    "G",
	"SURNAME":      "SN",
	"EMAIL":        "E",
	"EMAILADDRESS": "E",
	"TITLE":        "T",
	"ИНН":          "INN",
	"ОГРН":         "OGRN",
	"ОГРНИП":       "OGRNIP",
	"СНИЛС":        "SNILS",
	"ИНН ЮЛ":       "INNLE",
}
