package artifact

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// installerExtensions is the fixed set of recognized installer suffixes.
// Compound suffixes must precede their tails so ".tar.gz" wins over ".zip"-style
// single-extension matching.
var installerExtensions = []string{".tar.gz", ".msi", ".exe", ".dmg", ".AppImage", ".zip"}

// Installer is the selected build output.
type Installer struct {
	// Path is the absolute or caller-relative path to the installer file.
	Path string
	// Name is the bare filename.
	Name string
	// Ext is the matched installer suffix, including the leading dot.
	Ext string
	// ModTime is the file's last modification time, used for selection.
	ModTime time.Time
}

// Signature is the detached signature paired with an installer.
type Signature struct {
	// Path is the path to the signature file.
	Path string
	// Name is the bare filename.
	Name string
}

// Stem returns the installer filename without its matched suffix.
func (i *Installer) Stem() string {
	return strings.TrimSuffix(i.Name, i.Ext)
}

// FindInstaller walks root and returns the most recently modified file with a
// recognized installer suffix. It returns nil without error both when root
// does not exist and when nothing under it matches.
func FindInstaller(root string) (*Installer, error) {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	var latest *Installer

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		ext := matchExtension(entry.Name())
		if ext == "" {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		if latest == nil || info.ModTime().After(latest.ModTime) {
			latest = &Installer{
				Path:    path,
				Name:    entry.Name(),
				Ext:     ext,
				ModTime: info.ModTime(),
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return latest, nil
}

// FindSignature resolves the signature paired with the installer by trying,
// in order: "<name>.sig", "<stem>.sig", then the first "<stem>*.sig" glob
// match in the installer's directory. It returns nil when no candidate exists.
func FindSignature(installer *Installer) (*Signature, error) {
	dir := filepath.Dir(installer.Path)

	candidates := []string{
		installer.Path + ".sig",
		filepath.Join(dir, installer.Stem()+".sig"),
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return &Signature{Path: candidate, Name: filepath.Base(candidate)}, nil
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	matches, err := filepath.Glob(filepath.Join(dir, installer.Stem()+"*.sig"))
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return nil, nil
	}

	return &Signature{Path: matches[0], Name: filepath.Base(matches[0])}, nil
}

// ReadSignatureText returns the trimmed textual content of the signature file.
// Signature files are small textual blobs, so reading whole is fine.
func ReadSignatureText(sig *Signature) (string, error) {
	contents, err := os.ReadFile(filepath.Clean(sig.Path))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(contents)), nil
}

// matchExtension returns the recognized installer suffix of name, or "".
func matchExtension(name string) string {
	for _, ext := range installerExtensions {
		if strings.HasSuffix(name, ext) {
			return ext
		}
	}

	return ""
}
