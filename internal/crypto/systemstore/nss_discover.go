package systemstore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// DiscoverNSSStores returns the NSS databases of the current user: the shared
// ~/.pki/nssdb first, then Firefox profiles with the active one leading. It
// returns nil when no NSS softoken library can be found.
func DiscoverNSSStores() []*NSSStore {
	libPath := FindNSSLib()
	if libPath == "" {
		return nil
	}
	home, _ := os.UserHomeDir()
	return discoverNSSStores(libPath, home, firefoxBaseDirs(home))
}

func discoverNSSStores(libPath, home string, firefoxBases []string) []*NSSStore {
	var stores []*NSSStore
	seen := make(map[string]bool)
	add := func(dir, label string) {
		dir = filepath.Clean(dir)
		if seen[dir] || !hasCertDB(dir) {
			return
		}
		seen[dir] = true
		stores = append(stores, &NSSStore{LibPath: libPath, ProfileDir: dir, Label: label})
	}

	add(filepath.Join(home, ".pki", "nssdb"), "System NSS")
	for i, dir := range firefoxProfileDirs(firefoxBases) {
		if i == 0 {
			add(dir, "Firefox Active Profile")
			continue
		}
		add(dir, fmt.Sprintf("Firefox Profile %d", i+1))
	}
	return stores
}

func hasCertDB(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "cert9.db"))
	return err == nil
}

func firefoxBaseDirs(home string) []string {
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return []string{filepath.Join(appData, "Mozilla", "Firefox")}
	case "darwin":
		return []string{filepath.Join(home, "Library", "Application Support", "Firefox")}
	default:
		return []string{
			filepath.Join(home, ".mozilla", "firefox"),
			filepath.Join(home, "snap", "firefox", "common", ".mozilla", "firefox"),
			filepath.Join(home, ".var", "app", "org.mozilla.firefox", ".mozilla", "firefox"),
			filepath.Join(home, ".thunderbird"),
		}
	}
}

// firefoxProfile is one [ProfileN] section of profiles.ini.
type firefoxProfile struct {
	path      string
	rel       string
	isDefault bool
	modTime   int64
}

// firefoxProfileDirs lists the profile directories holding a certificate
// database under each base directory. The profile an installation is locked to
// comes first, then default profiles, then the most recently modified ones.
// Directories not listed in profiles.ini are appended last.
func firefoxProfileDirs(bases []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(dir string) {
		dir = filepath.Clean(dir)
		if dir == "." || seen[dir] || !hasCertDB(dir) {
			return
		}
		seen[dir] = true
		out = append(out, dir)
	}

	for _, base := range bases {
		profiles, installDefaults := readProfilesINI(base)
		for _, rel := range installDefaults {
			for _, p := range profiles {
				if p.rel == rel {
					add(p.path)
				}
			}
		}
		sort.SliceStable(profiles, func(i, j int) bool {
			if profiles[i].isDefault != profiles[j].isDefault {
				return profiles[i].isDefault
			}
			return profiles[i].modTime > profiles[j].modTime
		})
		for _, p := range profiles {
			add(p.path)
		}

		entries, _ := os.ReadDir(base)
		for _, e := range entries {
			if e.IsDir() {
				add(filepath.Join(base, e.Name()))
			}
		}
	}
	return out
}

// readProfilesINI parses base/profiles.ini. It returns the profiles and the
// relative paths of the profiles that [InstallXXX] sections lock to.
func readProfilesINI(base string) ([]firefoxProfile, []string) {
	sections, err := readINI(filepath.Join(base, "profiles.ini"))
	if err != nil {
		return nil, nil
	}

	var profiles []firefoxProfile
	var installDefaults []string
	for name, kv := range sections {
		switch {
		case strings.HasPrefix(name, "profile"):
			rel := kv["path"]
			if rel == "" {
				continue
			}
			p := firefoxProfile{rel: rel, path: rel, isDefault: kv["default"] == "1"}
			if kv["isrelative"] != "0" {
				p.path = filepath.Join(base, rel)
			}
			if st, err := os.Stat(p.path); err == nil {
				p.modTime = st.ModTime().Unix()
			}
			profiles = append(profiles, p)
		case strings.HasPrefix(name, "install"):
			if kv["locked"] == "1" && kv["default"] != "" {
				installDefaults = append(installDefaults, kv["default"])
			}
		}
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].rel < profiles[j].rel })
	sort.Strings(installDefaults)
	return profiles, installDefaults
}

// readINI reads an INI file into lower-cased section and key names.
func readINI(path string) (map[string]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sections := make(map[string]map[string]string)
	var current map[string]string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == ';' || line[0] == '#' {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			current = make(map[string]string)
			sections[name] = current
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok || current == nil {
			continue
		}
		current[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(val)
	}
	return sections, sc.Err()
}

// FindNSSLib locates the NSS softoken library, preferring the one shipped
// with an installed Firefox.
func FindNSSLib() string {
	home, _ := os.UserHomeDir()
	for _, dir := range firefoxProfileDirs(firefoxBaseDirs(home)) {
		compat, err := readINI(filepath.Join(dir, "compatibility.ini"))
		if err != nil {
			continue
		}
		platformDir := compat["compatibility"]["lastplatformdir"]
		if platformDir == "" {
			continue
		}
		if p := firstExisting(softokenNames(platformDir)...); p != "" {
			return p
		}
	}

	switch runtime.GOOS {
	case "windows":
		var paths []string
		for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)"} {
			if dir := os.Getenv(env); dir != "" {
				paths = append(paths, softokenNames(filepath.Join(dir, "Mozilla Firefox"))...)
			}
		}
		return firstExisting(paths...)
	case "darwin":
		return firstExisting(
			"/Applications/Firefox.app/Contents/MacOS/libsoftokn3.dylib",
			"/usr/local/lib/libsoftokn3.dylib",
		)
	default:
		return firstExisting(
			"/usr/lib/x86_64-linux-gnu/libsoftokn3.so",
			"/usr/lib/x86_64-linux-gnu/nss/libsoftokn3.so",
			"/usr/lib64/libsoftokn3.so",
			"/usr/lib/libsoftokn3.so",
		)
	}
}

func softokenNames(dir string) []string {
	switch runtime.GOOS {
	case "windows":
		return []string{filepath.Join(dir, "softokn3.dll")}
	case "darwin":
		return []string{filepath.Join(dir, "libsoftokn3.dylib")}
	default:
		return []string{filepath.Join(dir, "libsoftokn3.so")}
	}
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
