package live

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/peter-kozarec/dbnfeed/pkg/transport"
)

const (
	// APIKeyLength is the length of a platform API key.
	APIKeyLength   = 32
	bucketIDLength = 5
	maxLineLength  = 4096

	startSessionLine = "start_session\n"
)

// gatewayReply is one `key=value|key=value` control line from the gateway.
type gatewayReply map[string]string

func parseReply(line string) gatewayReply {
	reply := make(gatewayReply)
	for _, field := range strings.Split(strings.TrimSuffix(line, "\n"), "|") {
		key, value, _ := strings.Cut(field, "=")
		reply[key] = value
	}
	return reply
}

// readLine reads one newline terminated control line a byte at a time so
// nothing after it is consumed from the transport.
func readLine(tr transport.Transport) (string, error) {
	var b strings.Builder
	var c [1]byte
	for b.Len() < maxLineLength {
		if err := tr.ReadExact(c[:]); err != nil {
			return "", fmt.Errorf("%w: %w", ErrTransport, err)
		}
		if c[0] == '\n' {
			return b.String(), nil
		}
		b.WriteByte(c[0])
	}
	return "", fmt.Errorf("%w: control line exceeds %d bytes", ErrTransport, maxLineLength)
}

func writeLine(tr transport.Transport, line string) error {
	if err := tr.WriteAll([]byte(line)); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// challengeResponse answers the gateway's CRAM challenge without sending
// the key itself.
func challengeResponse(challenge, key string) string {
	sum := sha256.Sum256([]byte(challenge + "|" + key))
	return hex.EncodeToString(sum[:]) + "-" + key[len(key)-bucketIDLength:]
}

type handshake struct {
	key     string
	dataset string
	tsOut   bool
	client  string
}

// authenticate runs the greeting and CRAM exchange and returns the gateway
// session id.
func (h handshake) authenticate(tr transport.Transport) (string, error) {
	var challenge string
	for {
		line, err := readLine(tr)
		if err != nil {
			return "", err
		}
		reply := parseReply(line)
		if v, ok := reply["cram"]; ok {
			challenge = v
			break
		}
		if _, ok := reply["lsg_version"]; !ok {
			return "", fmt.Errorf("%w: unexpected greeting %q", ErrAuthentication, line)
		}
	}

	tsOut := "0"
	if h.tsOut {
		tsOut = "1"
	}
	request := fmt.Sprintf("auth=%s|dataset=%s|encoding=dbn|ts_out=%s|client=%s\n",
		challengeResponse(challenge, h.key), h.dataset, tsOut, h.client)
	if err := writeLine(tr, request); err != nil {
		return "", err
	}

	line, err := readLine(tr)
	if err != nil {
		return "", err
	}
	reply := parseReply(line)
	switch reply["success"] {
	case "1":
		return reply["session_id"], nil
	case "0":
		msg := reply["error"]
		if msg == "" {
			msg = "rejected without a reason"
		}
		return "", fmt.Errorf("%w: %s", ErrAuthentication, msg)
	default:
		return "", fmt.Errorf("%w: malformed reply %q", ErrAuthentication, line)
	}
}

// subscribe sends every request line followed by the start message.
func subscribe(tr transport.Transport, requests []string) error {
	for _, line := range requests {
		if err := writeLine(tr, line); err != nil {
			return err
		}
	}
	return writeLine(tr, startSessionLine)
}

func validateKey(key string) error {
	if len(key) != APIKeyLength {
		return fmt.Errorf("%w: API key must be %d characters", ErrUsage, APIKeyLength)
	}
	if strings.TrimSpace(key) != key {
		return fmt.Errorf("%w: API key contains whitespace", ErrUsage)
	}
	return nil
}
