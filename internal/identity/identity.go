package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Realm is the trust domain a principal belongs to.
type Realm string

const (
	RealmCitizen    Realm = "citizen"
	RealmGovernment Realm = "government"
	RealmBusiness   Realm = "business"
	RealmPlatform   Realm = "platform"
)

// NetworkType is the deployment network class a principal operates on.
type NetworkType string

const (
	NetworkGovernment NetworkType = "government"
	NetworkCommercial NetworkType = "commercial"
)

// Mode describes how the principal acts within its tenant.
type Mode string

const (
	ModeService       Mode = "service"
	ModeDelegated     Mode = "delegated"
	ModeTenantAdmin   Mode = "tenant_admin"
	ModePlatformAdmin Mode = "platform_admin"
)

// Module identifies one product module of the platform.
type Module string

const (
	ModuleICom            Module = "icom"
	ModuleIAsted          Module = "iasted"
	ModuleIContact        Module = "icontact"
	ModuleInbox           Module = "inbox"
	ModuleICorrespondance Module = "icorrespondance"
)

// Modules is the fixed, known module set in evaluation order.
var Modules = []Module{ModuleICom, ModuleIAsted, ModuleIContact, ModuleInbox, ModuleICorrespondance}

// Channel identifies one communication capability.
type Channel string

const (
	ChannelChat           Channel = "icom.chat"
	ChannelCall           Channel = "icom.call"
	ChannelMeeting        Channel = "icom.meeting"
	ChannelContact        Channel = "icontact"
	ChannelInbox          Channel = "inbox"
	ChannelCorrespondance Channel = "icorrespondance"
)

// Channels lists every defined channel.
var Channels = []Channel{ChannelChat, ChannelCall, ChannelMeeting, ChannelContact, ChannelInbox, ChannelCorrespondance}

var ErrInvalidPrincipal = errors.New("identity: invalid principal")

// Principal is an immutable application profile. A profile switch constructs
// a new Principal; nothing mutates one in place.
type Principal struct {
	TenantID       string          `json:"tenant_id"`
	AppID          string          `json:"app_id"`
	NetworkID      string          `json:"network_id,omitempty"`
	NetworkType    NetworkType     `json:"network_type"`
	Realm          Realm           `json:"realm"`
	Mode           Mode            `json:"mode"`
	ActorID        string          `json:"actor_id,omitempty"`
	Scopes         []string        `json:"scopes"`
	DesiredModules map[Module]bool `json:"desired_modules,omitempty"`
}

// Validate checks structural invariants before the principal enters the core.
func (p Principal) Validate() error {
	if strings.TrimSpace(p.TenantID) == "" {
		return fmt.Errorf("%w: tenant_id is required", ErrInvalidPrincipal)
	}
	if strings.TrimSpace(p.AppID) == "" {
		return fmt.Errorf("%w: app_id is required", ErrInvalidPrincipal)
	}
	if !validRealm(p.Realm) {
		return fmt.Errorf("%w: unknown realm %q", ErrInvalidPrincipal, p.Realm)
	}
	if !validNetworkType(p.NetworkType) {
		return fmt.Errorf("%w: unknown network type %q", ErrInvalidPrincipal, p.NetworkType)
	}
	switch p.Mode {
	case ModeService, ModeTenantAdmin, ModePlatformAdmin:
		if p.ActorID != "" {
			return fmt.Errorf("%w: actor_id is only valid in delegated mode", ErrInvalidPrincipal)
		}
	case ModeDelegated:
		if strings.TrimSpace(p.ActorID) == "" {
			return fmt.Errorf("%w: delegated mode requires actor_id", ErrInvalidPrincipal)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidPrincipal, p.Mode)
	}
	return nil
}

// Key identifies the session slot this principal occupies. One active session
// exists per key at a time.
func (p Principal) Key() string {
	return p.TenantID + "/" + p.AppID
}

func validRealm(r Realm) bool {
	switch r {
	case RealmCitizen, RealmGovernment, RealmBusiness, RealmPlatform:
		return true
	}
	return false
}

func validNetworkType(n NetworkType) bool {
	switch n {
	case NetworkGovernment, NetworkCommercial:
		return true
	}
	return false
}

// ParseRealm normalizes and validates a realm string.
func ParseRealm(s string) (Realm, error) {
	r := Realm(strings.TrimSpace(strings.ToLower(s)))
	if !validRealm(r) {
		return "", fmt.Errorf("%w: unknown realm %q", ErrInvalidPrincipal, s)
	}
	return r, nil
}

// ParseNetworkType normalizes and validates a network type string.
func ParseNetworkType(s string) (NetworkType, error) {
	n := NetworkType(strings.TrimSpace(strings.ToLower(s)))
	if !validNetworkType(n) {
		return "", fmt.Errorf("%w: unknown network type %q", ErrInvalidPrincipal, s)
	}
	return n, nil
}

// Network describes the network a principal operates on, including the
// per-network module policy. A nil or missing Modules entry means the network
// does not restrict that module.
type Network struct {
	ID      string          `json:"id"`
	Type    NetworkType     `json:"type"`
	Modules map[Module]bool `json:"modules,omitempty"`
}

// AllowsModule reports whether the network-level module policy permits the
// module. Absent entries default to allowed.
func (n Network) AllowsModule(m Module) bool {
	if n.Modules == nil {
		return true
	}
	allowed, ok := n.Modules[m]
	if !ok {
		return true
	}
	return allowed
}
