package sftpengine

import (
	stderrors "errors"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/TrevorEdris/transfer-utils/pkg/errors"
)

// AnyHostKey is the fingerprint value that accepts every host key.
const AnyHostKey = "*"

// HostKeyCallback verifies the server key against fingerprint when one is
// configured, else against the known_hosts file. fingerprint may be a bare
// "SHA256:..." or "aa:bb:..." value or the full "ssh-ed25519 255 SHA256:..."
// form; only the last field is compared.
func HostKeyCallback(fingerprint, knownHostsPath string) (ssh.HostKeyCallback, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == AnyHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if fingerprint != "" {
		fields := strings.Fields(fingerprint)
		want := fields[len(fields)-1]
		return func(hostname string, _ net.Addr, key ssh.PublicKey) error {
			if MatchFingerprint(key, want) {
				return nil
			}
			return eris.Wrapf(errors.ErrHostKeyMismatch, "%s presented %s", hostname, ssh.FingerprintSHA256(key))
		}, nil
	}

	path := knownHostsPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, eris.Wrap(errors.ErrHostKeyUnverifiable, "no fingerprint configured and no home directory")
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(errors.ErrHostKeyUnverifiable, "no fingerprint configured and %s is unavailable", path)
	}
	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to load known_hosts file %s", path)
	}
	return callback, nil
}

// MatchFingerprint compares key with a SHA256 (base64, with or without the
// "SHA256:" prefix and padding) or legacy MD5 (hex pairs) fingerprint.
func MatchFingerprint(key ssh.PublicKey, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return false
	}

	if strings.Count(want, ":") >= 15 || strings.HasPrefix(strings.ToUpper(want), "MD5:") {
		want = strings.TrimPrefix(strings.TrimPrefix(want, "MD5:"), "md5:")
		md5 := ssh.FingerprintLegacyMD5(key)
		return strings.EqualFold(strings.ReplaceAll(want, "-", ":"), md5)
	}

	got := strings.TrimPrefix(ssh.FingerprintSHA256(key), "SHA256:")
	want = strings.TrimRight(strings.TrimPrefix(want, "SHA256:"), "=")
	return got == want
}

// hostKeyError turns a rejected host key into ErrHostKeyMismatch, or
// ErrHostKeyUnverifiable when known_hosts has no entry for the host.
func hostKeyError(addr string, err error) error {
	if stderrors.Is(err, errors.ErrHostKeyMismatch) {
		return err
	}
	var ke *knownhosts.KeyError
	if stderrors.As(err, &ke) && len(ke.Want) == 0 {
		return eris.Wrapf(errors.ErrHostKeyUnverifiable, "%s is not in known_hosts", addr)
	}
	return eris.Wrapf(errors.ErrHostKeyMismatch, "%s: %v", addr, err)
}
