package scope

import "icomnet.org/internal/identity"

// moduleAccessOverrides maps modules whose access check does not follow the
// usual "<module>:read" convention to the scope they require instead. iasted
// exposes no read surface of its own and rides on its chat grant. This is a
// named exception, kept as data so new ones stay visible in one place.
var moduleAccessOverrides = map[identity.Module]string{
	identity.ModuleIAsted: "iasted:chat",
}

// CanAccessModule reports whether the granted scopes open the module at all.
// The module's read scope or its resource wildcard qualifies; overrides in
// moduleAccessOverrides replace the read scope for the named modules.
func CanAccessModule(granted []string, module identity.Module) bool {
	required := string(module) + ":read"
	if override, ok := moduleAccessOverrides[module]; ok {
		required = override
	}
	return HasAny(granted, required, string(module)+":*")
}
