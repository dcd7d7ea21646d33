package systemstore

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vocdoni/gofirma/usercerts/internal/plugin"
)

// NSSPluginVersion is the version reported by the NSS backend.
const NSSPluginVersion = "2.0.0"

// NSSWorkerFlag switches the executable into NSS scan worker mode.
const NSSWorkerFlag = "--nss-scan-worker"

var _ plugin.Plugin = (*NSSStore)(nil)

// NSSStore reads the certificates of one NSS database through a PKCS#11
// softoken. The scan runs in a worker subprocess so a crash inside the NSS
// library cannot take the caller down.
type NSSStore struct {
	LibPath    string
	ProfileDir string
	Label      string
	Log        logrus.FieldLogger
}

// nssObject is one certificate object reported by the scan worker.
type nssObject struct {
	Label   string `json:"label"`
	CertPEM string `json:"certPem"`
	Slot    uint   `json:"slot"`
	HasKey  bool   `json:"hasKey"`
}

// NSSAvailable reports whether this build can scan NSS databases.
func NSSAvailable() bool {
	return nssAvailable
}

func (s *NSSStore) Version(ctx context.Context) (string, error) {
	return NSSPluginVersion, ctx.Err()
}

func (s *NSSStore) CreateStore(ctx context.Context) (plugin.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !nssAvailable {
		return nil, plugin.Errorf(plugin.CodeNotSupported, "NSS stores are not available in this build")
	}
	if s.LibPath == "" || s.ProfileDir == "" {
		return nil, plugin.Errorf(plugin.CodeNotSupported, "no NSS library or profile configured")
	}
	return &scanStore{name: s.label(), scan: s.scanViaWorker}, nil
}

func (s *NSSStore) label() string {
	if s.Label != "" {
		return s.Label
	}
	return "NSS store"
}

func (s *NSSStore) logger() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (s *NSSStore) scanViaWorker(ctx context.Context) ([]plugin.Entry, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	log := s.logger().WithFields(logrus.Fields{"store": s.label(), "profile": s.ProfileDir})
	log.Debug("scanning NSS store")

	cmd := exec.CommandContext(ctx, exe,
		NSSWorkerFlag,
		"--lib", s.LibPath,
		"--profile", s.ProfileDir,
		"--label", s.label(),
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("nss worker failed for %s (%s): %w stderr=%s", s.label(), s.ProfileDir, err, strings.TrimSpace(stderr.String()))
	}
	entries, err := decodeNSSObjects(stdout)
	if err != nil {
		return nil, fmt.Errorf("decode nss worker output for %s (%s): %w", s.label(), s.ProfileDir, err)
	}
	log.WithField("count", len(entries)).Debug("NSS store scanned")
	return entries, nil
}

// decodeNSSObjects turns the worker's JSON payload into collection entries.
// Objects whose certificate does not parse are skipped.
func decodeNSSObjects(payload []byte) ([]plugin.Entry, error) {
	var objects []nssObject
	if err := json.Unmarshal(payload, &objects); err != nil {
		return nil, err
	}
	entries := make([]plugin.Entry, 0, len(objects))
	for _, obj := range objects {
		block, _ := pem.Decode([]byte(obj.CertPEM))
		if block == nil || len(block.Bytes) == 0 {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			continue
		}
		entries = append(entries, entryFor(cert, obj.HasKey))
	}
	return entries, nil
}

func encodeNSSObject(label string, slot uint, der []byte, hasKey bool) nssObject {
	return nssObject{
		Label:   label,
		CertPEM: string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})),
		Slot:    slot,
		HasKey:  hasKey,
	}
}
