//go:build cgo

package systemstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime/debug"
	"unsafe"

	"github.com/miekg/pkcs11"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const nssAvailable = true

// RunNSSScanWorker handles the hidden worker mode of the executable. It scans
// one NSS database, writes the certificate objects as JSON to stdout and
// returns the process exit code.
func RunNSSScanWorker(args []string) int {
	fs := pflag.NewFlagSet("nss-scan-worker", pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	libPath := fs.String("lib", "", "PKCS#11 library path")
	profileDir := fs.String("profile", "", "NSS profile directory")
	label := fs.String("label", "NSS store", "store label")
	level := fs.String("log-level", "warn", "worker log level")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "nss worker: parse args: %v\n", err)
		return 2
	}
	if *libPath == "" || *profileDir == "" {
		fmt.Fprintln(os.Stderr, "nss worker: --lib and --profile are required")
		return 2
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if lvl, err := logrus.ParseLevel(*level); err == nil {
		log.SetLevel(lvl)
	}

	objects, err := scanNSSDirect(context.Background(), *libPath, *profileDir, log.WithField("store", *label))
	if err != nil {
		fmt.Fprintf(os.Stderr, "nss worker: scan failed for %s (%s): %v\n", *label, *profileDir, err)
		return 1
	}
	if err := json.NewEncoder(os.Stdout).Encode(objects); err != nil {
		fmt.Fprintf(os.Stderr, "nss worker: write payload failed: %v\n", err)
		return 1
	}
	return 0
}

func scanNSSDirect(ctx context.Context, libPath, profileDir string, log logrus.FieldLogger) ([]nssObject, error) {
	p := pkcs11.New(libPath)
	if p == nil {
		return nil, fmt.Errorf("failed to load PKCS#11 lib: %s", libPath)
	}
	defer p.Destroy()

	params := fmt.Sprintf("configdir='sql:%s' certPrefix='' keyPrefix='' secmod='secmod.db' flags=readOnly", profileDir)
	reserved := append([]byte(params), 0)
	if err := p.Initialize(pkcs11.InitializeWithReserved(unsafe.Pointer(&reserved[0]))); err != nil {
		log.WithError(err).Debug("NSS initialize with parameters failed, trying plain")
		if err2 := p.Initialize(); err2 != nil {
			return nil, fmt.Errorf("pkcs11 initialize failed: reserved=%v plain=%w", err, err2)
		}
	}
	defer p.Finalize()

	slots, err := p.GetSlotList(true)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	log.WithField("slots", len(slots)).Debug("PKCS#11 slots found")

	objects := []nssObject{}
	for _, slot := range slots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		objects = append(objects, scanSlot(p, slot, log.WithField("slot", slot))...)
	}
	return objects, nil
}

func scanSlot(p *pkcs11.Ctx, slot uint, log logrus.FieldLogger) (objects []nssObject) {
	session, err := p.OpenSession(slot, pkcs11.CKF_SERIAL_SESSION)
	if err != nil {
		log.WithError(err).Debug("open session failed")
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic while scanning slot: %v\n%s", r, debug.Stack())
		}
		if err := p.Logout(session); err != nil && err != pkcs11.Error(pkcs11.CKR_USER_NOT_LOGGED_IN) {
			log.WithError(err).Debug("logout failed")
		}
		if err := p.CloseSession(session); err != nil {
			log.WithError(err).Debug("close session failed")
		}
	}()

	// NSS softokens without a master password accept an empty PIN.
	if err := p.Login(session, pkcs11.CKU_USER, ""); err != nil && err != pkcs11.Error(pkcs11.CKR_USER_ALREADY_LOGGED_IN) {
		log.WithError(err).Debug("login failed")
	}

	handles, err := findObjects(p, session, []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_CERTIFICATE),
	}, 1000)
	if err != nil {
		log.WithError(err).Debug("certificate search failed")
		return nil
	}
	log.WithField("count", len(handles)).Debug("certificate objects found")

	for _, obj := range handles {
		attrs, err := p.GetAttributeValue(session, obj, []*pkcs11.Attribute{
			pkcs11.NewAttribute(pkcs11.CKA_VALUE, nil),
			pkcs11.NewAttribute(pkcs11.CKA_LABEL, nil),
			pkcs11.NewAttribute(pkcs11.CKA_ID, nil),
		})
		if err != nil || len(attrs) < 3 || len(attrs[0].Value) == 0 {
			continue
		}
		der, label, ckaID := attrs[0].Value, string(attrs[1].Value), attrs[2].Value

		hasKey := false
		if len(ckaID) > 0 {
			keys, err := findObjects(p, session, []*pkcs11.Attribute{
				pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
				pkcs11.NewAttribute(pkcs11.CKA_ID, ckaID),
			}, 1)
			hasKey = err == nil && len(keys) > 0
		}
		objects = append(objects, encodeNSSObject(label, slot, der, hasKey))
	}
	return objects
}

func findObjects(p *pkcs11.Ctx, session pkcs11.SessionHandle, template []*pkcs11.Attribute, limit int) ([]pkcs11.ObjectHandle, error) {
	if err := p.FindObjectsInit(session, template); err != nil {
		return nil, err
	}
	handles, _, err := p.FindObjects(session, limit)
	if ferr := p.FindObjectsFinal(session); err == nil {
		err = ferr
	}
	return handles, err
}
