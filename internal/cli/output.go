package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vocdoni/gofirma/usercerts/internal/app"
	"github.com/vocdoni/gofirma/usercerts/internal/certlist"
	"github.com/vocdoni/gofirma/usercerts/internal/crypto/certs"
	"github.com/vocdoni/gofirma/usercerts/internal/crypto/pkcs12store"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText  OutputFormat = "text"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
	OutputFormatYAML  OutputFormat = "yaml"
)

const dateLayout = "2006-01-02"

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

type attributeView struct {
	Title string `json:"title" yaml:"title"`
	Value string `json:"value" yaml:"value"`
}

type certificateView struct {
	Name        string          `json:"name" yaml:"name"`
	SubjectName string          `json:"subjectName" yaml:"subjectName"`
	IssuerName  string          `json:"issuerName" yaml:"issuerName"`
	Thumbprint  string          `json:"thumbprint" yaml:"thumbprint"`
	ValidFrom   time.Time       `json:"validFrom" yaml:"validFrom"`
	ValidTo     time.Time       `json:"validTo" yaml:"validTo"`
	Owner       []attributeView `json:"owner,omitempty" yaml:"owner,omitempty"`
	Issuer      []attributeView `json:"issuer,omitempty" yaml:"issuer,omitempty"`
}

func viewOf(c certlist.Certificate, detailed bool) certificateView {
	v := certificateView{
		Name:        c.Name,
		SubjectName: c.SubjectName,
		IssuerName:  c.IssuerName,
		Thumbprint:  c.Thumbprint,
		ValidFrom:   c.ValidFrom,
		ValidTo:     c.ValidTo,
	}
	if detailed {
		v.Owner = attributeViews(c.OwnerInfo())
		v.Issuer = attributeViews(c.IssuerInfo())
	}
	return v
}

func attributeViews(attrs []certs.TaggedAttribute) []attributeView {
	out := make([]attributeView, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, attributeView{Title: a.Title, Value: a.Description})
	}
	return out
}

// PrintCertificateList prints the certificates in list order.
func (p *Printer) PrintCertificateList(list []certlist.Certificate) error {
	views := make([]certificateView, 0, len(list))
	for _, c := range list {
		views = append(views, viewOf(c, false))
	}
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{"certificates": views})
	case OutputFormatYAML:
		return p.printYAML(map[string]interface{}{"certificates": views})
	case OutputFormatTable:
		fmt.Fprintf(p.writer, "%-30s %-30s %-10s %-40s\n", "NAME", "ISSUER", "VALID TO", "THUMBPRINT")
		fmt.Fprintln(p.writer, strings.Repeat("-", 113))
		for _, c := range list {
			fmt.Fprintf(p.writer, "%-30s %-30s %-10s %-40s\n",
				truncate(c.Name, 30), truncate(certs.CommonName(c.IssuerName), 30), c.ValidTo.Format(dateLayout), c.Thumbprint)
		}
		return nil
	case OutputFormatText:
		fmt.Fprintln(p.writer, "Certificates:")
		for _, c := range list {
			fmt.Fprintf(p.writer, "  - %s (%s, valid until %s)\n", c.Name, c.Thumbprint, c.ValidTo.Format(dateLayout))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintCertificate prints one certificate with its owner and issuer details.
func (p *Printer) PrintCertificate(c certlist.Certificate) error {
	v := viewOf(c, true)
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(v)
	case OutputFormatYAML:
		return p.printYAML(v)
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, "Certificate:")
		fmt.Fprintf(p.writer, "  Name:       %s\n", v.Name)
		fmt.Fprintf(p.writer, "  Subject:    %s\n", v.SubjectName)
		fmt.Fprintf(p.writer, "  Issuer:     %s\n", v.IssuerName)
		fmt.Fprintf(p.writer, "  Thumbprint: %s\n", v.Thumbprint)
		fmt.Fprintf(p.writer, "  Valid from: %s\n", v.ValidFrom.Format(time.RFC3339))
		fmt.Fprintf(p.writer, "  Valid to:   %s\n", v.ValidTo.Format(time.RFC3339))
		p.printAttributes("Owner", v.Owner)
		p.printAttributes("Issued by", v.Issuer)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func (p *Printer) printAttributes(heading string, attrs []attributeView) {
	if len(attrs) == 0 {
		return
	}
	fmt.Fprintf(p.writer, "%s:\n", heading)
	for _, a := range attrs {
		fmt.Fprintf(p.writer, "  %s: %s\n", a.Title, a.Value)
	}
}

// PrintIdentity prints an identity added to the vault.
func (p *Printer) PrintIdentity(id *pkcs12store.Identity) error {
	info := map[string]interface{}{
		"id":          id.ID,
		"name":        id.FriendlyName,
		"fingerprint": fmt.Sprintf("%x", id.Fingerprint256),
		"hasKey":      id.HasKey,
	}
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(info)
	case OutputFormatYAML:
		return p.printYAML(info)
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Imported %s (%s)\n", id.FriendlyName, id.ID)
		if !id.HasKey {
			fmt.Fprintln(p.writer, "  No private key: the certificate cannot be used for signing.")
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintDeleted prints an identity removed from the vault.
func (p *Printer) PrintDeleted(id *pkcs12store.Identity) error {
	info := map[string]interface{}{
		"status": "deleted",
		"id":     id.ID,
		"name":   id.FriendlyName,
	}
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(info)
	case OutputFormatYAML:
		return p.printYAML(info)
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Deleted %s (%s)\n", id.FriendlyName, id.ID)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintBackendList prints the backends and their availability.
func (p *Printer) PrintBackendList(backends []app.Backend, current string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{"backends": backends, "current": current})
	case OutputFormatYAML:
		return p.printYAML(map[string]interface{}{"backends": backends, "current": current})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, "Available Backends:")
		for _, b := range backends {
			mark := " "
			if b.Name == current {
				mark = "*"
			}
			status := "available"
			if !b.Available {
				status = "not available in this build"
			}
			fmt.Fprintf(p.writer, " %s %-7s %s, %s\n", mark, b.Name, b.Description, status)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintVersion prints version information.
func (p *Printer) PrintVersion(info map[string]string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(info)
	case OutputFormatYAML:
		return p.printYAML(info)
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "usercerts %s (%s, %s/%s)\n", info["version"], info["go"], info["os"], info["arch"])
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	case OutputFormatYAML:
		return p.printYAML(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func (p *Printer) printJSON(v interface{}) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) printYAML(v interface{}) error {
	enc := yaml.NewEncoder(p.writer)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
