package netid

import "net"

// DefaultProbe is a reserved address that is never routed. Connecting a UDP socket
// to it sends no packets but makes the OS pick the outbound interface.
const DefaultProbe = "10.255.255.255:1"

// DefaultFallback is used whenever the outbound address cannot be determined.
const DefaultFallback = "127.0.0.1"

// Identity is the address the kiosk advertises to phones on the local network.
type Identity struct {
	IP       string
	Fallback bool
}

// UploadURL is the "go to this URL" hint shown on the dashboard.
func (id Identity) UploadURL(port string) string {
	return "http://" + net.JoinHostPort(id.IP, port)
}

// DialFunc matches net.Dial.
type DialFunc func(network, address string) (net.Conn, error)

// Resolver finds the host's outbound IPv4 address. It is best-effort: the result is
// only used for display, never for binding or access decisions.
type Resolver struct {
	Probe    string
	Fallback string
	Dial     DialFunc
}

// NewResolver returns a Resolver using the real network stack. Empty arguments take defaults.
func NewResolver(probe, fallback string) *Resolver {
	if probe == "" {
		probe = DefaultProbe
	}
	if fallback == "" {
		fallback = DefaultFallback
	}
	return &Resolver{Probe: probe, Fallback: fallback, Dial: net.Dial}
}

// Resolve never fails; when the lookup does not produce an IPv4 address the
// fallback is returned with Fallback set.
func (r *Resolver) Resolve() Identity {
	dial := r.Dial
	if dial == nil {
		dial = net.Dial
	}
	conn, err := dial("udp", r.Probe)
	if err != nil {
		return r.fallback()
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr == nil {
		return r.fallback()
	}
	ip4 := addr.IP.To4()
	if ip4 == nil || ip4.IsUnspecified() {
		return r.fallback()
	}
	return Identity{IP: ip4.String()}
}

func (r *Resolver) fallback() Identity {
	fb := r.Fallback
	if fb == "" {
		fb = DefaultFallback
	}
	return Identity{IP: fb, Fallback: true}
}
