package dnscache

import (
	"context"
	"net"
	"os"
)

// Seams for the host-identity tests.
var (
	osHostname       = os.Hostname
	localIPAddresses = LocalIPAddresses
)

// NameToIP resolves a name through the OS resolver (getaddrinfo), like
// net.LookupHost but preferring an IPv6 result when asked to. The caller
// is responsible for an appropriate timeout and for handling the error.
func NameToIP(name string, preferIPv6 bool) (ip string, err error) {
	addrs_, err := net.DefaultResolver.LookupIPAddr(context.Background(), name)
	if err != nil {
		return "", err
	}
	ipv4_, ipv6_ := "", ""
	for _, addr_ := range addrs_ {
		if addr_.IP.To4() != nil {
			ipv4_ = addr_.IP.String()
		} else {
			ipv6_ = addr_.IP.String()
			if preferIPv6 {
				return ipv6_, nil
			}
		}
	}
	if ipv4_ != "" {
		return ipv4_, nil
	}
	return ipv6_, nil
}

// HostsEqual reports whether host1 and host2 name the same physical
// machine, using the shared resolver with the default timeout.
func HostsEqual(host1, host2, cacheFileName string, skipFallback bool, externalLink string) bool {
	return NewDNSCache(0).HostsEqual(host1, host2, cacheFileName, skipFallback, externalLink)
}

// HostsEqual reconciles two host identifiers against DNS, literal IP
// parsing and this machine's own address set. A loopback or site-local
// literal, or the string "localhost", stands for this machine's canonical
// hostname. cacheFileName backs the local-address enumeration; a non-empty
// externalLink additionally folds in the externally observed address. With
// skipFallback unset a final getaddrinfo comparison decides, swallowing
// resolution errors as "not equal".
func (cache *DNSCache) HostsEqual(host1, host2, cacheFileName string, skipFallback bool,
	externalLink string) bool {

	if host1 == host2 {
		return true
	}
	// Check whether the hosts resolve to the same IP, with some
	// special-casing for localhost.
	hostname_, err := osHostname()
	if err != nil {
		log.Warnf("unable to get hostname: %v", err)
	}

	host1IsIP_ := false
	ip1_ := net.ParseIP(host1)
	if ip1_ == nil {
		if host1 == "localhost" {
			host1 = hostname_
		}
	} else if ip1_.IsLoopback() || isSiteLocal(ip1_) {
		host1 = hostname_
	} else {
		host1IsIP_ = true
	}
	host2IsIP_ := false
	ip2_ := net.ParseIP(host2)
	if ip2_ == nil {
		if host2 == "localhost" {
			host2 = hostname_
		}
	} else if ip2_.IsLoopback() || isSiteLocal(ip2_) {
		host2 = hostname_
	} else {
		host2IsIP_ = true
	}

	// Try DNS lookups first.
	host1IPs_ := []string{}
	host1HasIPv6_ := false
	if !host1IsIP_ {
		host1IPs_ = append(host1IPs_, cache.Lookup(host1, "A", "IN", true)...)
		host1AAAA_ := cache.Lookup(host1, "AAAA", "IN", true)
		if len(host1AAAA_) > 0 {
			host1IPs_ = append(host1IPs_, host1AAAA_...)
			host1HasIPv6_ = true
		}
	}
	if ip1_ != nil {
		host1IPs_ = append(host1IPs_, ip1_.String())
	}
	if host1 == hostname_ {
		host1IPs_ = append(host1IPs_, localIPAddresses(cacheFileName, externalLink, true)...)
	}

	host2IPs_ := []string{}
	if !host2IsIP_ {
		host2IPs_ = append(host2IPs_, cache.Lookup(host2, "A", "IN", true)...)
		if host1HasIPv6_ {
			// If host1 doesn't have any AAAA records, then there's no
			// point trying to find any matching ones from host2.
			host2IPs_ = append(host2IPs_, cache.Lookup(host2, "AAAA", "IN", true)...)
		}
	}
	if ip2_ != nil {
		host2IPs_ = append(host2IPs_, ip2_.String())
	}
	if host2 == hostname_ {
		host2IPs_ = append(host2IPs_, localIPAddresses(cacheFileName, externalLink, true)...)
	}

	host1Set_ := make(map[string]bool, len(host1IPs_))
	for _, ip_ := range host1IPs_ {
		host1Set_[ip_] = true
	}
	for _, ip_ := range host2IPs_ {
		if host1Set_[ip_] {
			return true
		}
	}
	if skipFallback {
		return false
	}

	// Fall back to getaddrinfo.
	host1IP_ := host1
	if !host1IsIP_ {
		if host1IP_, err = NameToIP(host1, true); err != nil {
			return false
		}
	}
	host2IP_ := host2
	if !host2IsIP_ {
		if host2IP_, err = NameToIP(host2, true); err != nil {
			return false
		}
	}
	return host1IP_ == host2IP_
}

// isSiteLocal reports deprecated IPv6 site-local scope (fec0::/10); IPv4
// has no equivalent here.
func isSiteLocal(ip net.IP) bool {
	if ip.To4() != nil {
		return false
	}
	ip = ip.To16()
	return ip != nil && ip[0] == 0xfe && ip[1]&0xc0 == 0xc0
}
