// Package steps defines the fixed, ordered bootstrap operations. Each step
// decides from live target state whether it is needed and talks to the target
// only through ports.Driver.
package steps

import "github.com/alexisbeaulieu97/authboot/internal/ports"

// Catalog returns the six bootstrap steps in execution order.
func Catalog(opts Options) []ports.Step {
	return []ports.Step{
		NewBootstrapAdmin(opts),
		NewAuthenticate(opts),
		NewForwardAuthProvider(opts),
		NewOutpostAttachment(opts),
		NewOAuth2Provider(opts),
		NewApplication(opts),
	}
}
