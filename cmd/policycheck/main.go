// policycheck evaluates one communication policy question or one module
// entitlement query from the command line and prints the result as JSON.
// Useful for verifying matrix changes without standing up the API.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"

	"icomnet.org/internal/identity"
	"icomnet.org/internal/policy"
)

func main() {
	log.SetFlags(0)
	var (
		sender   = flag.String("sender", "", "sender realm")
		receiver = flag.String("receiver", "", "receiver realm")
		network  = flag.String("network", "commercial", "network type (government|commercial)")
		channel  = flag.String("channel", "", "channel to check (omit to list available channels)")
		scopes   = flag.String("scopes", "*", "comma-separated caller scopes")
		modules  = flag.String("modules", "", "comma-separated desired modules; when set, prints module entitlements instead")
	)
	flag.Parse()

	senderRealm, err := identity.ParseRealm(*sender)
	if err != nil {
		log.Fatalf("sender: %v", err)
	}
	networkType, err := identity.ParseNetworkType(*network)
	if err != nil {
		log.Fatalf("network: %v", err)
	}
	scopeList := splitList(*scopes)

	if *modules != "" {
		principal := identity.Principal{
			TenantID:       "cli",
			AppID:          "policycheck",
			Realm:          senderRealm,
			NetworkType:    networkType,
			Mode:           identity.ModeService,
			Scopes:         scopeList,
			DesiredModules: make(map[identity.Module]bool),
		}
		for _, m := range splitList(*modules) {
			principal.DesiredModules[identity.Module(m)] = true
		}
		emit(policy.EffectiveModules(principal, identity.Network{Type: networkType}))
		return
	}

	receiverRealm, err := identity.ParseRealm(*receiver)
	if err != nil {
		log.Fatalf("receiver: %v", err)
	}
	if *channel == "" {
		emit(policy.AvailableChannels(senderRealm, receiverRealm, networkType, scopeList))
		return
	}
	emit(policy.CanCommunicate(policy.Request{
		SenderRealm:   senderRealm,
		ReceiverRealm: receiverRealm,
		NetworkType:   networkType,
		Scopes:        scopeList,
		Channel:       identity.Channel(*channel),
	}))
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func emit(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode: %v", err)
	}
}
