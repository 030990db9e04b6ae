// Package network lists the addresses control surfaces on the local network
// can use to reach the server.
package network

import (
	"fmt"
	"net"
	"sort"
	"strings"
)

// Interface types, in the order addresses are listed.
const (
	TypeEthernet = "ethernet"
	TypeWiFi     = "wifi"
	TypeOther    = "other"
)

// Address is one IPv4 address of an up, non-loopback interface.
type Address struct {
	Interface string
	IP        string
	Type      string
}

// URL returns the control surface URL at this address.
func (a Address) URL(port string) string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(a.IP, port))
}

// Describe returns a one-line label such as "📶 en0 (Wifi) http://10.0.0.4:4100".
func (a Address) Describe(port string) string {
	return fmt.Sprintf("%s %s (%s) %s", typeIcon(a.Type), a.Interface, capitalize(a.Type), a.URL(port))
}

// InterfaceType guesses the kind of interface from its name.
func InterfaceType(ifaceName string) string {
	name := strings.ToLower(ifaceName)

	// en0 is typically WiFi on macOS
	if name == "en0" {
		return TypeWiFi
	}
	if strings.HasPrefix(name, "eth") || strings.HasPrefix(name, "en") {
		return TypeEthernet
	}
	if strings.HasPrefix(name, "wl") || strings.Contains(name, "wifi") || strings.Contains(name, "wireless") {
		return TypeWiFi
	}
	return TypeOther
}

func typeIcon(interfaceType string) string {
	switch interfaceType {
	case TypeWiFi:
		return "📶"
	case TypeEthernet:
		return "🌐"
	}
	return "📡"
}

func typeRank(interfaceType string) int {
	switch interfaceType {
	case TypeEthernet:
		return 0
	case TypeWiFi:
		return 1
	}
	return 2
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// LANAddresses returns the IPv4 addresses of every up, non-loopback
// interface: ethernet first, then wifi, then the rest.
func LANAddresses() ([]Address, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}

	var addrs []Address
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		ifAddrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range ifAddrs {
			if ip := ipv4(addr); ip != nil {
				addrs = append(addrs, Address{
					Interface: iface.Name,
					IP:        ip.String(),
					Type:      InterfaceType(iface.Name),
				})
			}
		}
	}
	SortAddresses(addrs)
	return addrs, nil
}

func ipv4(addr net.Addr) net.IP {
	ipNet, ok := addr.(*net.IPNet)
	if !ok {
		return nil
	}
	ip := ipNet.IP.To4()
	if ip == nil || ip.IsLinkLocalUnicast() {
		return nil
	}
	return ip
}

// SortAddresses orders addrs by interface type, then interface name.
func SortAddresses(addrs []Address) {
	sort.SliceStable(addrs, func(i, j int) bool {
		ri, rj := typeRank(addrs[i].Type), typeRank(addrs[j].Type)
		if ri != rj {
			return ri < rj
		}
		return addrs[i].Interface < addrs[j].Interface
	})
}
