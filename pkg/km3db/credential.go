package km3db

import (
	"fmt"
	"regexp"
	"strings"
)

// Credential is a database session token, the value of the "sid" cookie.
type Credential string

// sidPattern matches _<realm>_<dotted ip token>_<32 hex digits>.
var sidPattern = regexp.MustCompile(`^_[a-zA-Z0-9.\-]+_(\d{1,3}(?:\.\d{1,3}){1,3})_[a-f0-9]{32}$`)

// NetworkClass is the network width a session credential is bound to. The
// server embeds that many leading octets of the client address in the token.
type NetworkClass int

const (
	// ClassA binds the credential to the full client address.
	ClassA NetworkClass = iota
	// ClassB binds the credential to the first two octets.
	ClassB
	// ClassC binds the credential to the first three octets.
	ClassC
)

// ParseNetworkClass accepts "", "A", "B" or "C" in any case.
func ParseNetworkClass(s string) (NetworkClass, error) {
	switch strings.ToUpper(s) {
	case "", "A":
		return ClassA, nil
	case "B":
		return ClassB, nil
	case "C":
		return ClassC, nil
	}
	return ClassA, fmt.Errorf("%w: %q", ErrInvalidNetworkClass, s)
}

func (n NetworkClass) String() string {
	switch n {
	case ClassB:
		return "B"
	case ClassC:
		return "C"
	default:
		return "A"
	}
}

// minOctets is the shortest address prefix a credential of this class may carry.
func (n NetworkClass) minOctets() int {
	switch n {
	case ClassB:
		return 2
	case ClassC:
		return 3
	default:
		return 4
	}
}

// Validate checks s against the session credential pattern and requires at
// least as many address octets as the class binds. The error never contains s.
func (n NetworkClass) Validate(s string) error {
	octets, err := addressOctets(s)
	if err != nil {
		return err
	}
	if octets < n.minOctets() {
		return fmt.Errorf("%w: %d address octets, class %s needs %d", ErrInvalidCredential, octets, n, n.minOctets())
	}
	return nil
}

// ValidateStored checks a credential read back from a store or the
// environment. Any network class is accepted: the class only decides which
// login responses are kept.
func ValidateStored(s string) error {
	_, err := addressOctets(s)
	return err
}

func addressOctets(s string) (int, error) {
	m := sidPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, ErrInvalidCredential
	}
	return strings.Count(m[1], ".") + 1, nil
}

// ValidCredential reports whether s is a class A session credential.
func ValidCredential(s string) bool {
	return ClassA.Validate(s) == nil
}

// credentialFromLogin returns the rest of a login response body after the
// first "sid=", trimmed. Anything after the token makes it invalid.
func credentialFromLogin(body string) (string, bool) {
	_, after, found := strings.Cut(body, "sid=")
	if !found {
		return "", false
	}
	token := strings.TrimSpace(after)
	return token, token != ""
}
