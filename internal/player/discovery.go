package player

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/samber/lo"
)

const mprisPrefix = "org.mpris.MediaPlayer2."

type Player struct {
	Service  string
	Identity string
}

// ShortName is the service name without the MPRIS prefix, e.g. "spotify".
func (p Player) ShortName() string {
	return strings.TrimPrefix(p.Service, mprisPrefix)
}

// ListPlayers returns every MPRIS player currently on the session bus.
func ListPlayers(ctx context.Context, bus *dbus.Conn) ([]Player, error) {
	var names []string
	err := bus.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names)
	if err != nil {
		return nil, fmt.Errorf("failed to list dbus names: %w", err)
	}

	services := filterMprisNames(names)
	return lo.Map(services, func(service string, _ int) Player {
		return Player{Service: service, Identity: Identity(ctx, bus, service)}
	}), nil
}

func filterMprisNames(names []string) []string {
	services := lo.Filter(names, func(name string, _ int) bool {
		return strings.HasPrefix(name, mprisPrefix)
	})
	sort.Strings(services)
	return services
}

// ResolveService accepts a full service name or the short player name.
func ResolveService(name string) string {
	if name == "" || strings.HasPrefix(name, mprisPrefix) {
		return name
	}
	return mprisPrefix + name
}

func Identity(ctx context.Context, bus *dbus.Conn, service string) string {
	var value dbus.Variant
	obj := bus.Object(service, mprisPath)
	err := obj.CallWithContext(ctx, propertiesGet, 0, "org.mpris.MediaPlayer2", "Identity").Store(&value)
	if err != nil {
		return ""
	}

	identity, ok := value.Value().(string)
	if !ok {
		return ""
	}
	return identity
}
