package host

import (
	"errors"
	"fmt"
	"strings"

	"github.com/muurk/deckdrill/internal/protocol"
)

// ErrMissingParameter is returned when a registration parameter is absent.
var ErrMissingParameter = errors.New("missing registration parameter")

// Registration argument names as passed by the host application.
const (
	ArgPort          = "port"
	ArgPluginUUID    = "pluginUUID"
	ArgRegisterEvent = "registerEvent"
	ArgInfo          = "info"
)

// RegistrationParameters are the arguments the host starts a plugin with.
type RegistrationParameters struct {
	Port          int
	PluginUUID    string
	RegisterEvent string
	Info          string
}

// Validate checks that every parameter is present and the info document parses.
func (p RegistrationParameters) Validate() error {
	var missing []string
	if p.Port <= 0 || p.Port > 65535 {
		missing = append(missing, "-"+ArgPort)
	}
	if p.PluginUUID == "" {
		missing = append(missing, "-"+ArgPluginUUID)
	}
	if p.RegisterEvent == "" {
		missing = append(missing, "-"+ArgRegisterEvent)
	}
	if p.Info == "" {
		missing = append(missing, "-"+ArgInfo)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingParameter, strings.Join(missing, ", "))
	}

	if _, err := p.RegistrationInfo(); err != nil {
		return err
	}
	return nil
}

// RegistrationInfo decodes the -info document.
func (p RegistrationParameters) RegistrationInfo() (*protocol.RegistrationInfo, error) {
	return protocol.ParseRegistrationInfo(p.Info)
}

// Args renders the parameters the way the host passes them on the command line.
func (p RegistrationParameters) Args() []string {
	return []string{
		"-" + ArgPort, fmt.Sprint(p.Port),
		"-" + ArgPluginUUID, p.PluginUUID,
		"-" + ArgRegisterEvent, p.RegisterEvent,
		"-" + ArgInfo, p.Info,
	}
}

// NormalizeArgs rewrites the single-dash registration flags the host uses
// ("-port 28196") into the double-dash form pflag expects. Other arguments
// pass through unchanged.
func NormalizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		name, _, _ := strings.Cut(strings.TrimPrefix(a, "-"), "=")
		if strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--") {
			switch name {
			case ArgPort, ArgPluginUUID, ArgRegisterEvent, ArgInfo:
				a = "-" + a
			}
		}
		out[i] = a
	}
	return out
}
