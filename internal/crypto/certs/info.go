package certs

import (
	"regexp"
	"strings"
)

// TaggedAttribute is a distinguished name attribute with a readable title.
// Translated is false when the type is unknown and Title is the raw type.
type TaggedAttribute struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Translated  bool   `json:"translated"`
}

var titles = map[string]string{
	"CN":                     "Owner",
	"SN":                     "Surname",
	"G":                      "Given name",
	"C":                      "Country",
	"S":                      "Region",
	"L":                      "Locality",
	"STREET":                 "Address",
	"O":                      "Organization",
	"OU":                     "Department",
	"T":                      "Title",
	"E":                      "Email",
	"SERIALNUMBER":           "Serial number",
	"ORGANIZATIONIDENTIFIER": "Organization ID",
	"UNSTRUCTUREDNAME":       "Unstructured name",
	"INN":                    "INN",
	"INNLE":                  "INN of legal entity",
	"OGRN":                   "OGRN",
	"OGRNIP":                 "OGRNIP",
	"SNILS":                  "SNILS",
}

var (
	// Spanish personal identifiers.
	reDNI = regexp.MustCompile(`\b\d{8}[A-Z]\b`)
	reNIE = regexp.MustCompile(`\b[XYZ]\d{7}[A-Z]\b`)
	// Common CIF/NIF legal-entity format.
	reCIF = regexp.MustCompile(`\b[ABCDEFGHJNPQRSUVW]\d{7}[0-9A-J]\b`)
)

// TaggedInfo returns the attributes of dn in order, titled where the type is
// known. Serial numbers carrying a national identifier with an ETSI prefix
// ("IDCES-47824166J") are reduced to the identifier.
func TaggedInfo(dn string) []TaggedAttribute {
	attrs := ParseDN(dn)
	out := make([]TaggedAttribute, 0, len(attrs))
	for _, a := range attrs {
		typ := canonicalType(a.Type)
		value := normalizeSpace(a.Value)
		switch typ {
		case "SERIALNUMBER":
			if id := extractID(value); id != "" {
				value = id
			}
		case "ORGANIZATIONIDENTIFIER":
			value = extractOrgID(value)
		}

		title, ok := titles[typ]
		if !ok {
			title = a.Type
		}
		out = append(out, TaggedAttribute{Title: title, Description: value, Translated: ok})
	}
	return out
}

func extractID(s string) string {
	v := strings.ToUpper(normalizeSpace(s))
	v = strings.TrimPrefix(v, "IDCES-")
	v = strings.TrimPrefix(v, "IDESP-")
	switch {
	case reDNI.MatchString(v):
		return reDNI.FindString(v)
	case reNIE.MatchString(v):
		return reNIE.FindString(v)
	case reCIF.MatchString(v):
		return reCIF.FindString(v)
	default:
		return ""
	}
}

func extractOrgID(s string) string {
	v := strings.ToUpper(normalizeSpace(s))
	v = strings.TrimPrefix(v, "VATES-")
	if reCIF.MatchString(v) {
		return reCIF.FindString(v)
	}
	return v
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
