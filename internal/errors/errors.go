package errors

import "errors"

var (
	ErrSecretEmpty         = errors.New("secret resolved to an empty value")
	ErrStackNotFound       = errors.New("stack not found")
	ErrStackWaitTimeout    = errors.New("timed out waiting for stack operation")
	ErrRoleNotAssumable    = errors.New("role did not become assumable within deadline")
	ErrIntegrationRequired = errors.New("route requires an existing integration")
)
