package descriptor

import (
	"strconv"
	"strings"
	"time"

	"github.com/TrevorEdris/transfer-utils/pkg/engine"
	"github.com/TrevorEdris/transfer-utils/pkg/errors"
)

// AliasGroup lists the keys that name one setting, highest precedence first.
type AliasGroup []string

var (
	Host           = AliasGroup{"host", "hostname"}
	User           = AliasGroup{"username", "user"}
	Password       = AliasGroup{"password", "pw"}
	HostKey        = AliasGroup{"hostkey", "hostkeyfingerprint"}
	Port           = AliasGroup{"port", "portnumber"}
	Executable     = AliasGroup{"exe", "exepath"}
	ProtocolKey    = AliasGroup{"protocol", "scheme"}
	TimeoutSeconds = AliasGroup{"timeout"}
	Region         = AliasGroup{"region"}
)

func (g AliasGroup) has(key string) bool {
	for _, k := range g {
		if k == key {
			return true
		}
	}
	return false
}

// Resolve looks the group up in d.
func (g AliasGroup) Resolve(d Descriptor) (string, bool) {
	return d.Lookup(g...)
}

// ConnectionOptions builds engine options from the descriptor. Absent keys
// leave fields at their zero value; a present but unparsable port or timeout
// is an error.
func (d Descriptor) ConnectionOptions() (engine.ConnectionOptions, error) {
	protoValue, _ := ProtocolKey.Resolve(d)
	protocol, err := engine.ParseProtocol(protoValue)
	if err != nil {
		return engine.ConnectionOptions{}, err
	}

	o := engine.ConnectionOptions{Protocol: protocol}
	o.Host, _ = Host.Resolve(d)
	o.Username, _ = User.Resolve(d)
	o.Password, _ = Password.Resolve(d)
	o.HostKeyFingerprint, _ = HostKey.Resolve(d)
	o.Region, _ = Region.Resolve(d)

	if exe, ok := Executable.Resolve(d); ok && strings.TrimSpace(exe) != "" {
		o.ExecutablePath = strings.TrimSpace(exe)
	}

	if port, ok := Port.Resolve(d); ok && strings.TrimSpace(port) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(port))
		if err != nil {
			return engine.ConnectionOptions{}, errors.NewInvalidDescriptorValueError("port", port)
		}
		o.Port = n
	}

	if timeout, ok := TimeoutSeconds.Resolve(d); ok && strings.TrimSpace(timeout) != "" {
		secs, err := strconv.Atoi(strings.TrimSpace(timeout))
		if err != nil || secs < 0 {
			return engine.ConnectionOptions{}, errors.NewInvalidDescriptorValueError("timeout", timeout)
		}
		o.Timeout = time.Duration(secs) * time.Second
	}

	return o, nil
}
