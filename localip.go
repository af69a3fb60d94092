package dnscache

import (
	"encoding/gob"
	"io"
	"net"
	"net/http"
	"os"
	"os/user"
	"strconv"
	"strings"
	"time"

	"github.com/gojek/heimdall/v7/hystrix"
)

// LocalIPCacheGroup names the OS group given ownership of a freshly
// created address-cache file, so the several system users writing and
// reading it can share one copy. Empty skips the chown.
var LocalIPCacheGroup = ""

const localIPCacheMaxAge = 24 * time.Hour

var externalIPClient = hystrix.NewClient(
	hystrix.WithHTTPTimeout(5*time.Second),
	hystrix.WithHystrixTimeout(8*time.Second),
	hystrix.WithMaxConcurrentRequests(HttpClientMaxConcurrency),
	hystrix.WithErrorPercentThreshold(50),
	hystrix.WithRetryCount(1),
)

// LocalIPAddresses returns the IP addresses in use on this server. The
// enumeration result is kept in a gob cache file shared between processes;
// with useCached set a file younger than 24 hours short-circuits the
// enumeration. A non-empty externalLink is fetched over HTTP to add the
// externally observed address of this host.
func LocalIPAddresses(cacheFileName string, externalLink string, useCached bool) (ips []string) {
	if useCached {
		if cached_, ok := readLocalIPCache(cacheFileName); ok {
			return cached_
		}
	}
	ips = localInterfaceAddresses()
	if externalLink != "" {
		externalIP_, err := fetchExternalIP(externalLink)
		if err != nil {
			log.Warnf("unable to retrieve external IP: %v", err)
		} else if externalIP_ != "" {
			ips = append(ips, externalIP_)
		}
	}
	ips = RemoveSliceDuplicate(ips)
	log.Infof("local IP addresses: %s", strings.Join(ips, ", "))
	writeLocalIPCache(cacheFileName, ips)
	return ips
}

func readLocalIPCache(cacheFileName string) (ips []string, ok bool) {
	stat_, err := os.Stat(cacheFileName)
	if err != nil {
		log.Debugf("not using cache: %v", err)
		return nil, false
	}
	if time.Since(stat_.ModTime()) >= localIPCacheMaxAge {
		log.Debugf("not using cache for local IP addresses")
		return nil, false
	}
	cacheFile_, err := os.Open(cacheFileName)
	if err != nil {
		log.Debugf("not using cache: %v", err)
		return nil, false
	}
	defer func() { _ = cacheFile_.Close() }()
	if err = gob.NewDecoder(cacheFile_).Decode(&ips); err != nil {
		log.Warnf("bad local IP address cache; replacing")
		return nil, false
	}
	log.Debugf("using cache for local IP addresses")
	return ips, true
}

func writeLocalIPCache(cacheFileName string, ips []string) {
	adjustCache_ := !PathExists(cacheFileName)
	cacheFile_, err := os.Create(cacheFileName)
	if err != nil {
		log.Warnf("unable to cache IP list: %v", err)
		return
	}
	err = gob.NewEncoder(cacheFile_).Encode(ips)
	if closeErr_ := cacheFile_.Close(); err == nil {
		err = closeErr_
	}
	if err != nil {
		log.Warnf("unable to cache IP list: %v", err)
		return
	}
	if !adjustCache_ {
		return
	}
	// The cache may be created by whichever of the sharing users gets here
	// first; open it up so the others can refresh it too.
	if err = os.Chmod(cacheFileName, 0o660); err != nil {
		log.Infof("unable to set permissions of cache: %v", err)
	}
	if LocalIPCacheGroup == "" {
		return
	}
	group_, err := user.LookupGroup(LocalIPCacheGroup)
	if err != nil {
		log.Infof("unable to set owner/group of cache: %v", err)
		return
	}
	gid_, err := strconv.Atoi(group_.Gid)
	if err != nil {
		log.Infof("unable to set owner/group of cache: %v", err)
		return
	}
	if err = os.Chown(cacheFileName, os.Geteuid(), gid_); err != nil {
		log.Infof("unable to set owner/group of cache: %v", err)
	}
}

// localInterfaceAddresses enumerates assigned addresses: IPv4 except
// loopback, IPv6 only global scope.
func localInterfaceAddresses() (ips []string) {
	ifaces_, err := net.Interfaces()
	if err != nil {
		log.Warnf("unable to enumerate interfaces: %v", err)
		return nil
	}
	for _, iface_ := range ifaces_ {
		if iface_.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs_, err := iface_.Addrs()
		if err != nil {
			log.Warnf("unable to enumerate %s addresses: %v", iface_.Name, err)
			continue
		}
		for _, addr_ := range addrs_ {
			ipNet_, ok := addr_.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4_ := ipNet_.IP.To4(); ip4_ != nil {
				if !ip4_.IsLoopback() {
					ips = append(ips, ip4_.String())
				}
			} else if ipNet_.IP.IsGlobalUnicast() {
				ips = append(ips, ipNet_.IP.String())
			}
		}
	}
	return
}

func fetchExternalIP(externalLink string) (ip string, err error) {
	httpRsp_, err := externalIPClient.Get(externalLink,
		http.Header{"User-Agent": []string{"dns-cache/" + CurrentVersion}})
	defer func() {
		if httpRsp_ != nil && httpRsp_.Body != nil {
			_ = httpRsp_.Body.Close()
		}
	}()
	if err != nil {
		return "", err
	}
	bodyBytes_, err := io.ReadAll(httpRsp_.Body)
	if err != nil {
		return "", err
	}
	ip = strings.TrimSpace(string(bodyBytes_))
	if strings.HasPrefix(ip, "::ffff:") {
		// Junk that nginx prepends to IPv4 addresses.
		ip = ip[strings.LastIndex(ip, ":")+1:]
	}
	return ip, nil
}
